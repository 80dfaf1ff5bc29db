package store

import "testing"

func TestNewDBRejectsMalformedConnString(t *testing.T) {
	db, err := NewDB("://not-a-connection-string")
	if err == nil {
		t.Fatal("expected error for malformed connection string")
	}
	// Callers branch on the wrapper being nil to tell "cannot open" apart
	// from "opened but not reachable".
	if db != nil {
		t.Fatalf("expected nil wrapper on open failure, got %+v", db)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Fatalf("Close on nil wrapper: %v", err)
	}
	if err := (&DB{}).Close(); err != nil {
		t.Fatalf("Close on empty wrapper: %v", err)
	}
}
