package database

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// compactScript rebuilds the file and refreshes planner statistics.
const compactScript = "VACUUM; ANALYZE"

// Compact runs VACUUM and ANALYZE through the statement queue.
func (db *DB) Compact(ctx context.Context) error {
	if err := db.ExecScript(ctx, compactScript); err != nil {
		return fmt.Errorf("compacting database: %w", err)
	}
	db.log().Info("database compacted", "path", db.path)
	return nil
}

// startCompactSchedule runs Compact on a cron schedule until Close.
// Standard five-field expressions and descriptors such as @daily are
// accepted.
func (db *DB) startCompactSchedule(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := db.Compact(context.Background()); err != nil {
			db.log().Error("scheduled compaction failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid compaction schedule %q: %w", spec, err)
	}

	db.scheduler = c
	c.Start()
	return nil
}
