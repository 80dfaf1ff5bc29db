package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"musicstudio/internal/config"
	"musicstudio/internal/queue"
	"musicstudio/internal/scheduling"
	"musicstudio/internal/store"
)

// Worker sends lesson reminders. A cron entry sweeps the day's scheduled
// lessons into the queue; the consumer loop marks each lesson reminded.
// Delivery failures are logged and skipped, never retried into the
// scheduling tables.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "musicstudio:reminders")
	}

	repo := scheduling.NewRepository(db.Client)

	sweep := func() {
		if err := sweepReminders(ctx, repo, q); err != nil {
			log.Printf("reminder sweep failed: %v", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReminderCron, sweep); err != nil {
		log.Fatalf("bad reminder cron %q: %v", cfg.ReminderCron, err)
	}
	c.Start()
	defer c.Stop()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Printf("worker started, sweep schedule %q", cfg.ReminderCron)
	for msg := range messages {
		switch msg.Type {
		case queue.TypeScheduleGenerated:
			// A commit just landed; re-sweep so today's new lessons get
			// their reminders without waiting for the next cron tick.
			log.Printf("schedule generated for teacher %s, re-sweeping", string(msg.Body))
			sweep()

		case queue.TypeLessonReminder:
			id := string(msg.Body)
			if err := deliverReminder(ctx, repo, id); err != nil {
				log.Printf("reminder for lesson %s failed: %v", id, err)
				continue
			}
			if err := repo.MarkLessonReminded(ctx, id); err != nil {
				log.Printf("mark lesson %s reminded failed: %v", id, err)
			}
		}
	}

	log.Println("worker stopped")
}

// sweepReminders publishes one reminder message per still-unreminded lesson
// scheduled today.
func sweepReminders(ctx context.Context, repo *scheduling.Repository, q queue.Queue) error {
	lessons, err := repo.ListUnremindedLessonsOn(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, l := range lessons {
		msg := queue.Message{Type: queue.TypeLessonReminder, Body: []byte(l.ID)}
		if err := q.Publish(ctx, msg); err != nil {
			log.Printf("enqueue reminder for lesson %s failed: %v", l.ID, err)
		}
	}
	if len(lessons) > 0 {
		log.Printf("queued %d lesson reminders", len(lessons))
	}
	return nil
}

// deliverReminder hands the reminder to the messaging side. Delivery itself
// is owned by an external notification service; here we resolve the lesson
// and log what would go out.
func deliverReminder(ctx context.Context, repo *scheduling.Repository, lessonID string) error {
	lessons, err := repo.ListLessonsByIDsAnyTeacher(ctx, []string{lessonID})
	if err != nil {
		return err
	}
	if len(lessons) == 0 {
		log.Printf("lesson %s vanished before reminding, skipping", lessonID)
		return nil
	}
	l := lessons[0]
	log.Printf("reminder: %s has a lesson at %s", l.StudentName, l.ScheduledTime.Format("Mon Jan 2 15:04"))
	return nil
}
