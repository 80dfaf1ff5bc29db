package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"musicstudio/internal/auth"
	"musicstudio/internal/calendar"
	"musicstudio/internal/config"
	"musicstudio/internal/httpmiddleware"
	"musicstudio/internal/notes"
	"musicstudio/internal/queue"
	"musicstudio/internal/scheduling"
	"musicstudio/internal/store"
	"musicstudio/internal/timetable"
)

const generateLockTTL = 2 * time.Minute

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		// A nil wrapper means the connection string never opened; without it
		// there is no repository to serve. A ping failure just means the
		// database is not reachable yet.
		if db == nil {
			return fmt.Errorf("open database: %w", err)
		}
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "musicstudio:reminders")
	}

	schedRepo := scheduling.NewRepository(db.Client)
	engine := scheduling.NewEngine(schedRepo, cfg.InsertBatchSize)
	tt := timetable.NewService(timetable.NewRepository(db.Client))
	feed := calendar.NewService(calendar.NewRepository(db.Client))
	noteLinks := notes.NewService(notes.NewRepository(db.Client), cfg.NotesBaseURL)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(redisClient.Client, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Authentication itself lives upstream; this endpoint mirrors the hosted
	// session into a service token carrying the teacher/school identity.
	r.POST("/v1/teachers/login", func(c *gin.Context) {
		var req struct {
			TeacherID string `json:"teacher_id" binding:"required"`
			SchoolID  string `json:"school_id" binding:"required"`
			Role      string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role == "" {
			req.Role = "teacher"
		}
		tokens, err := auth.Issue(req.TeacherID, req.SchoolID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.TeacherAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/timetable", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		view, err := tt.View(c.Request.Context(), claims.TeacherID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	})

	authGroup.PATCH("/students/:id/schedule", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			Field string `json:"field" binding:"required"`
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		student, err := tt.UpdateSlot(c.Request.Context(), claims.TeacherID, c.Param("id"), req.Field, req.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"student": student})
	})

	authGroup.DELETE("/students/:id/schedule", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		student, err := tt.ClearSlot(c.Request.Context(), claims.TeacherID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"student": student})
	})

	authGroup.POST("/schedule/preview", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		req, _, ok := bindScheduleRequest(c, claims)
		if !ok {
			return
		}
		plan, err := engine.Preview(c.Request.Context(), req)
		if err != nil {
			c.JSON(scheduleErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"occurrences": plan.Occurrences,
			"new_count":   len(plan.NewLessons),
			"duplicates":  len(plan.Duplicates),
			"conflicts":   plan.ConflictGroups(),
		})
	})

	authGroup.POST("/schedule/generate", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		req, decision, ok := bindScheduleRequest(c, claims)
		if !ok {
			return
		}

		// Generation is disabled while the configured weekly slots themselves
		// overlap; the grid has to be fixed first.
		clashes, err := tt.Clashes(c.Request.Context(), claims.TeacherID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(clashes) > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "timetable has overlapping slots", "clashes": clashes})
			return
		}

		lockKey := "musicstudio:generate:" + claims.TeacherID
		got, err := redisClient.AcquireLock(c.Request.Context(), lockKey, generateLockTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lock acquisition failed"})
			return
		}
		if !got {
			c.JSON(http.StatusLocked, gin.H{"error": "a generate run is already in progress"})
			return
		}
		defer func() {
			if err := redisClient.ReleaseLock(context.Background(), lockKey); err != nil {
				log.Printf("release generate lock: %v", err)
			}
		}()

		res, conflicts, err := engine.Generate(c.Request.Context(), req, decision)
		switch {
		case errors.Is(err, scheduling.ErrConflictsPending):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflicts": conflicts})
			return
		case err != nil:
			payload := gin.H{"error": err.Error()}
			if res != nil {
				payload["partial_result"] = res
			}
			c.JSON(scheduleErrorStatus(err), payload)
			return
		}

		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeScheduleGenerated, Body: []byte(claims.TeacherID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusOK, res)
	})

	authGroup.GET("/lessons", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		from, err := parseDate(c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
			return
		}
		to, err := parseDate(c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
			return
		}
		lessons, err := schedRepo.ListLessonsInRange(c.Request.Context(), claims.TeacherID, nil, from, to.Add(24*time.Hour-time.Second))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lessons": lessons})
	})

	authGroup.POST("/lessons/reschedule", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			LessonIDs []string `json:"lesson_ids" binding:"required"`
			NewDate   string   `json:"new_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		newDate, err := parseDate(req.NewDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_date: " + err.Error()})
			return
		}
		res, err := engine.Reschedule(c.Request.Context(), claims.TeacherID, req.LessonIDs, newDate)
		if err != nil {
			payload := gin.H{"error": err.Error()}
			if res != nil {
				payload["partial_result"] = res
			}
			c.JSON(http.StatusBadRequest, payload)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	authGroup.DELETE("/lessons", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		var req struct {
			LessonIDs []string `json:"lesson_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := engine.Delete(c.Request.Context(), claims.TeacherID, req.LessonIDs)
		if err != nil {
			payload := gin.H{"error": err.Error()}
			if res != nil {
				payload["partial_result"] = res
			}
			c.JSON(http.StatusBadRequest, payload)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	authGroup.GET("/calendar.ics", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		from := time.Now().AddDate(0, -1, 0)
		to := time.Now().AddDate(0, 3, 0)
		if v := c.Query("from"); v != "" {
			parsed, err := parseDate(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
				return
			}
			from = parsed
		}
		if v := c.Query("to"); v != "" {
			parsed, err := parseDate(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
				return
			}
			to = parsed.Add(24*time.Hour - time.Second)
		}
		ics, err := feed.Feed(c.Request.Context(), claims.TeacherID, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
	})

	authGroup.POST("/lessons/:id/notes-link", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		link, note, err := noteLinks.Link(c.Request.Context(), claims.TeacherID, c.Param("id"), auth.BearerToken(c))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": link, "note": note})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// bindScheduleRequest reads the shared body of the preview and generate
// endpoints: start/end dates plus the optional conflict resolution.
func bindScheduleRequest(c *gin.Context, claims auth.Claims) (scheduling.Request, scheduling.Decision, bool) {
	var body struct {
		StartDate  string `json:"start_date" binding:"required"`
		EndDate    string `json:"end_date" binding:"required"`
		Resolution string `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return scheduling.Request{}, scheduling.DecisionNone, false
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date: " + err.Error()})
		return scheduling.Request{}, scheduling.DecisionNone, false
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date: " + err.Error()})
		return scheduling.Request{}, scheduling.DecisionNone, false
	}

	var decision scheduling.Decision
	switch body.Resolution {
	case "":
		decision = scheduling.DecisionNone
	case "keep":
		decision = scheduling.DecisionKeep
	case "replace":
		decision = scheduling.DecisionReplace
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "resolution must be keep or replace"})
		return scheduling.Request{}, scheduling.DecisionNone, false
	}

	return scheduling.Request{
		TeacherID: claims.TeacherID,
		SchoolID:  claims.SchoolID,
		Start:     start,
		End:       end,
	}, decision, true
}

func scheduleErrorStatus(err error) int {
	if errors.Is(err, scheduling.ErrNoSchedulableStudents) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
