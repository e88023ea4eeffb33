package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
)

// Postgres is the PostgreSQL store.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to PostgreSQL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			user_id       TEXT        NOT NULL,
			id            TEXT        NOT NULL,
			name          TEXT        NOT NULL,
			path          TEXT        NOT NULL,
			type          TEXT        NOT NULL,
			content       TEXT,
			last_modified TIMESTAMPTZ NOT NULL,
			is_modified   BOOLEAN     NOT NULL DEFAULT FALSE,
			PRIMARY KEY (user_id, id),
			UNIQUE (user_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS github_tokens (
			user_id  TEXT PRIMARY KEY,
			token    TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS session_state (
			user_id TEXT NOT NULL,
			key     TEXT NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// LoadEntries implements filetree.Backend.LoadEntries.
func (p *Postgres) LoadEntries(ctx context.Context, user string) ([]filetree.Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, path, type, content, last_modified, is_modified
		 FROM files WHERE user_id = $1 ORDER BY path`, user)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var out []filetree.Record
	for rows.Next() {
		var rec filetree.Record
		var content sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Path, &rec.Type,
			&content, &rec.LastModified, &rec.IsModified); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if content.Valid {
			rec.Content = &content.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// UpsertEntry implements filetree.Backend.UpsertEntry.
func (p *Postgres) UpsertEntry(ctx context.Context, user string, rec filetree.Record) error {
	var content sql.NullString
	if rec.Content != nil {
		content = sql.NullString{String: *rec.Content, Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO files (user_id, id, name, path, type, content, last_modified, is_modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			content = EXCLUDED.content,
			last_modified = EXCLUDED.last_modified,
			is_modified = EXCLUDED.is_modified`,
		user, rec.ID, rec.Name, rec.Path, rec.Type, content, rec.LastModified, rec.IsModified)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", rec.Path, err)
	}
	return nil
}

// DeleteEntries implements filetree.Backend.DeleteEntries.
func (p *Postgres) DeleteEntries(ctx context.Context, user string, ids []string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM files WHERE user_id = $1 AND id = $2`, user, id); err != nil {
			return fmt.Errorf("delete file %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SetModified implements filetree.Backend.SetModified.
func (p *Postgres) SetModified(ctx context.Context, user, id string, modified bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE files SET is_modified = $3 WHERE user_id = $1 AND id = $2`,
		user, id, modified)
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return filetree.ErrNotFound
	}
	return nil
}

// SaveToken stores a GitHub credential for a user.
func (p *Postgres) SaveToken(ctx context.Context, user string, tok Token) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO github_tokens (user_id, token, username) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, username = EXCLUDED.username`,
		user, tok.Token, tok.Username)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// GetToken returns the stored credential for a user.
func (p *Postgres) GetToken(ctx context.Context, user string) (string, string, error) {
	var token, username string
	err := p.db.QueryRowContext(ctx,
		`SELECT token, username FROM github_tokens WHERE user_id = $1`, user).
		Scan(&token, &username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrTokenNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get token: %w", err)
	}
	return token, username, nil
}

// DeleteToken removes the stored credential for a user.
func (p *Postgres) DeleteToken(ctx context.Context, user string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM github_tokens WHERE user_id = $1`, user)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PutState stores a JSON-encoded session-state value.
func (p *Postgres) PutState(ctx context.Context, user, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO session_state (user_id, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
		user, key, string(raw))
	if err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}

// GetState loads a session-state value into v.
func (p *Postgres) GetState(ctx context.Context, user, key string, v any) error {
	var raw string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE user_id = $1 AND key = $2`, user, key).
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("get state %s: %w", key, err)
	}
	return json.Unmarshal([]byte(raw), v)
}

// DeleteState removes a session-state key.
func (p *Postgres) DeleteState(ctx context.Context, user, key string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM session_state WHERE user_id = $1 AND key = $2`, user, key)
	if err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
