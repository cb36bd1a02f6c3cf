package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/sqlutil"
)

// Schema creates the rooms table. The status and updated_at columns mirror
// the JSON document so that the purge tool can sweep without decoding it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
    id         TEXT PRIMARY KEY,
    state      JSONB,
    status     TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS rooms_status_updated_at_idx ON rooms (status, updated_at)`,
}

const (
	getRoomQuery = `SELECT state FROM rooms WHERE id = $1`

	upsertRoomQuery = `
INSERT INTO rooms (id, state, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET state = EXCLUDED.state, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	deleteRoomQuery = `DELETE FROM rooms WHERE id = $1`
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore keeps one JSONB document per room.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// CreateSchema bootstraps the rooms table if it does not exist.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	err := sqlutil.Run(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range Schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create rooms schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, roomID string) (*room.State, error) {
	var doc pqtype.NullRawMessage
	err := p.db.QueryRowContext(ctx, getRoomQuery, roomID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, room.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	if !doc.Valid {
		return nil, room.ErrRoomNotFound
	}

	var s room.State
	if err := json.Unmarshal(doc.RawMessage, &s); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", roomID, err)
	}
	return &s, nil
}

func (p *PostgresStore) Put(ctx context.Context, s *room.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", s.RoomID, err)
	}

	doc := pqtype.NullRawMessage{RawMessage: data, Valid: len(data) > 0}
	if _, err := p.db.ExecContext(ctx, upsertRoomQuery,
		s.RoomID, doc, string(s.Status), s.CreatedAt, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save room %s: %w", s.RoomID, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, roomID string) error {
	if _, err := p.db.ExecContext(ctx, deleteRoomQuery, roomID); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}
