// Package sqlite archives identified cards in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/aretw0/cardsort/pkg/ports"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - cards table
const currentSchemaVersion = 1

// Archive implements ports.CardArchive.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the archive at path and applies the schema.
// The database runs in WAL mode with a single connection, since SQLite allows one writer.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Archive{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Append implements ports.CardArchive.
func (a *Archive) Append(ctx context.Context, cycleID string, card domain.Card, bin int) error {
	colors := card.Colors
	if colors == nil {
		colors = []string{}
	}
	colorsJSON, err := json.Marshal(colors)
	if err != nil {
		return fmt.Errorf("failed to marshal colors: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO cards (cycle_id, name, type, colors, cmc, set_code, image_url, bin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycleID, card.Name, card.Type, string(colorsJSON), card.CMC, card.SetCode, card.ImageURL, bin,
		a.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

// Recent implements ports.CardArchive, newest first. A limit <= 0 returns every row.
func (a *Archive) Recent(ctx context.Context, limit int) ([]ports.ArchivedCard, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, cycle_id, name, type, colors, cmc, set_code, image_url, bin, created_at
		FROM cards
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	out := []ports.ArchivedCard{}
	for rows.Next() {
		var (
			rec     ports.ArchivedCard
			colors  string
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.Card.Name, &rec.Card.Type, &colors,
			&rec.Card.CMC, &rec.Card.SetCode, &rec.Card.ImageURL, &rec.Bin, &created); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		if err := json.Unmarshal([]byte(colors), &rec.Card.Colors); err != nil {
			return nil, fmt.Errorf("invalid colors for card %d: %w", rec.ID, err)
		}
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return out, nil
}

// Clear implements ports.CardArchive.
func (a *Archive) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM cards"); err != nil {
		return fmt.Errorf("failed to clear cards: %w", err)
	}
	return nil
}
