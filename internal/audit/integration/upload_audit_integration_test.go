package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"skytrack-cloud/internal/audit"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestUploadAuditRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "upload_audit") {
		t.Skip("upload_audit missing; run migrations")
	}

	ctx := context.Background()
	repo := audit.NewRepository(db)
	now := time.Now().UTC()

	rec := audit.Record{
		DeviceID:      "drone-it-1",
		Key:           "snapshots/it/" + audit.NewID(),
		Outcome:       "succeeded",
		Attempts:      2,
		SizeBytes:     12288,
		PayloadDigest: audit.Digest([]byte("payload")),
		EventTS:       now,
	}
	if err := repo.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	from := now.Truncate(24 * time.Hour)
	summaries, err := repo.SummarizeDays(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summaries) == 0 {
		t.Fatal("no summary rows for today")
	}
	if summaries[0].Uploads < 1 {
		t.Fatalf("uploads = %d, want at least 1", summaries[0].Uploads)
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = $1
	)`, name).Scan(&exists)
	return err == nil && exists
}
