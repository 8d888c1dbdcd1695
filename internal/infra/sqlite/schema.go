package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// schemaVersion is bumped whenever an entity table changes shape. A stored
// version that differs from it causes the entity tables to be dropped and
// recreated; cached questions, attempts and results are lost.
const schemaVersion = 2

// entity tables in drop order
var entityTables = []string{"local_quizzes", "quiz_attempts", "local_quiz_results", "sync_status"}

var metaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_info (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);`,
	// install identity lives outside the versioned entity tables
	`CREATE TABLE IF NOT EXISTS install_identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		device_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,
}

var entityStatements = []string{
	`CREATE TABLE IF NOT EXISTS local_quizzes (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		category TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		downloaded_at INTEGER NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quiz_id TEXT NOT NULL,
		selected_answer TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		time_spent INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		is_synced BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS local_quiz_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		score INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		time_spent INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		device_id TEXT NOT NULL,
		is_synced BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS sync_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_sync_time INTEGER NOT NULL DEFAULT 0,
		pending_sync_count INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_local_quizzes_category ON local_quizzes(category, is_completed);`,
	`CREATE INDEX IF NOT EXISTS idx_local_quizzes_downloaded ON local_quizzes(downloaded_at);`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_synced ON quiz_attempts(is_synced, completed_at);`,
	`CREATE INDEX IF NOT EXISTS idx_results_synced ON local_quiz_results(is_synced, completed_at);`,
}

// ensureSchema creates the schema, recreating entity tables on a version mismatch.
func ensureSchema(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := execAll(ctx, tx, metaStatements); err != nil {
			return err
		}

		var stored int
		err := tx.NewSelect().Table("schema_info").Column("version").Where("id = 1").Scan(ctx, &stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			stored = 0
		case err != nil:
			return fmt.Errorf("read schema version: %w", err)
		}

		if stored != 0 && stored != schemaVersion {
			logger.Warn("local schema version mismatch, recreating tables",
				zap.Int("stored", stored),
				zap.Int("expected", schemaVersion),
			)
			for _, table := range entityTables {
				if _, err := tx.NewDropTable().Table(table).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop %s: %w", table, err)
				}
			}
		}

		if err := execAll(ctx, tx, entityStatements); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_info (id, version) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET version = excluded.version`,
			schemaVersion)
		if err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		return nil
	})
}

func execAll(ctx context.Context, tx bun.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
