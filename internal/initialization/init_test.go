package initialization

import (
	"path/filepath"
	"testing"
)

func TestInitQueue(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := InitQueue(db, 0); err != nil {
		t.Fatal(err)
	}

	var tables int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'backlite%'").Scan(&tables)
	if err != nil {
		t.Fatal(err)
	}
	if tables == 0 {
		t.Error("queue schema was not installed")
	}
}
