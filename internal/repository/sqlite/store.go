// Package sqlite реализует хранилище ключ-значение поверх встраиваемой SQLite.
// Используется локально (CLI, разработка) вместо Redis.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (и при необходимости создаёт) базу по пути из конфигурации.
func Open(ctx context.Context, cfg *cfg.SQLiteCfg) (*Store, error) {
	const op = "sqlite.Open"

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// Одно соединение: SQLite сериализует запись, а PRAGMA действует на соединение.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, e.Wrap(op, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, e.Wrap(op, fmt.Errorf("failed to initialize schema: %w", err))
	}

	return &Store{db: db, now: time.Now}, nil
}

// Get возвращает значение по ключу или e.ErrKeyNotFound. Просроченные ключи считаются отсутствующими.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, e.ErrKeyNotFound
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return value, nil
}

// GetMany возвращает значения в порядке ключей. Для отсутствующих ключей элемент равен nil.
func (s *Store) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(keys)+1)
	args = append(args, s.now().UnixMilli())
	for _, k := range keys {
		args = append(args, k)
	}

	query := `SELECT key, value FROM kv WHERE (expires_at IS NULL OR expires_at > ?) AND key IN (` +
		placeholders(len(keys)) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([][]byte, len(keys))
	for i, k := range keys {
		result[i] = found[k]
	}

	return result, nil
}

// Set сохраняет значение. Нулевой ttl означает хранение без срока.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Del удаляет ключи. Отсутствующие ключи не считаются ошибкой.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders(len(keys))+`)`, args...); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
