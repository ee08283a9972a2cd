package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded *.up.sql file that is not yet recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := migrationFiles("up")
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, name := range files {
		version := strings.TrimSuffix(name, ".up.sql")

		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return applied, fmt.Errorf("read migration file %s: %w", name, err)
		}

		err = WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version) VALUES ($1)", version)
			if err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}

		log.Printf("Applied migration: %s", name)
		applied++
	}

	return applied, nil
}

// Rollback reverts every recorded migration, newest first.
func Rollback(ctx context.Context, db *sql.DB) (int, error) {
	files, err := migrationFiles("down")
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := len(files) - 1; i >= 0; i-- {
		name := files[i]
		version := strings.TrimSuffix(name, ".down.sql")

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return reverted, fmt.Errorf("read migration file %s: %w", name, err)
		}

		var recorded bool
		err = WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", version)
			if err != nil {
				return fmt.Errorf("unrecord migration %s: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			if n == 0 {
				return nil
			}
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
			recorded = true
			return nil
		})
		if err != nil {
			return reverted, err
		}
		if recorded {
			log.Printf("Reverted migration: %s", name)
			reverted++
		}
	}

	return reverted, nil
}

func migrationFiles(direction string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "."+direction+".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
