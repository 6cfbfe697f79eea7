package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DraftRepo gives raw access to the drafts table across all scopes.
// ForScope narrows it to the single-session Store the wizard consumes.
type DraftRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r DraftRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ForScope returns a Store bound to one session scope.
func (r DraftRepo) ForScope(scope string) Store {
	return scopedStore{repo: r, scope: scope}
}

// Scopes lists every scope that currently holds the given key, most
// recently written first. Used by the operator CLI to find archives.
func (r DraftRepo) Scopes(ctx context.Context, key string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT scope FROM drafts WHERE name=? ORDER BY updated_at DESC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scopes []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}

type scopedStore struct {
	repo  DraftRepo
	scope string
}

func (s scopedStore) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", key, err)
	}
	ts := s.repo.now().UTC().Format(time.RFC3339)
	_, err = s.repo.DB.ExecContext(ctx,
		`INSERT INTO drafts(scope,name,value_json,updated_at) VALUES (?,?,?,?)
		 ON CONFLICT(scope,name) DO UPDATE SET value_json=excluded.value_json, updated_at=excluded.updated_at`,
		s.scope, key, string(data), ts)
	return err
}

func (s scopedStore) Load(ctx context.Context, key string, dest any) (bool, error) {
	var raw string
	err := s.repo.DB.QueryRowContext(ctx,
		`SELECT value_json FROM drafts WHERE scope=? AND name=?`, s.scope, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("unmarshal draft %s: %w", key, err)
	}
	return true, nil
}

func (s scopedStore) Clear(ctx context.Context, key string) error {
	_, err := s.repo.DB.ExecContext(ctx,
		`DELETE FROM drafts WHERE scope=? AND name=?`, s.scope, key)
	return err
}
