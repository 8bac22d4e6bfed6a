// Package content persists the ordered menu sections, the legacy proxy text and quizzes.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/m3rciful/cpabot/core/logger"
)

// Options tune a Store.
type Options struct {
	// ProxyTitle overrides DefaultProxyTitle.
	ProxyTitle string
	// NewID generates section ids; defaults to ULIDs.
	NewID func() string
}

// Store is the SQL-backed content store. Every mutation runs in a single transaction
// and read-modify-write sequences are serialized by mu.
type Store struct {
	db         *sqlx.DB
	mu         sync.Mutex
	proxyTitle string
	newID      func() string
}

// NewStore wraps a migrated database.
func NewStore(db *sqlx.DB, opts Options) *Store {
	s := &Store{
		db:         db,
		proxyTitle: opts.ProxyTitle,
		newID:      opts.NewID,
	}
	if s.proxyTitle == "" {
		s.proxyTitle = DefaultProxyTitle
	}
	if s.newID == nil {
		s.newID = func() string { return ulid.Make().String() }
	}
	return s
}

// ProxyTitle returns the sentinel title used for the proxy section.
func (s *Store) ProxyTitle() string {
	return s.proxyTitle
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Normalize folds a legacy proxy text into a section titled with the sentinel title.
// When such a section already exists the legacy text is dropped. It reports whether
// a section was created and is safe to call any number of times.
func (s *Store) Normalize(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalizeLocked(ctx)
}

func (s *Store) normalizeLocked(ctx context.Context) (bool, error) {
	var migrated bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var legacy string
		err := tx.GetContext(ctx, &legacy, "SELECT proxy_text FROM legacy_proxy WHERE id = 1")
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read legacy proxy text: %w", err)
		}

		exists, err := s.proxySectionID(ctx, tx)
		if err != nil {
			return err
		}
		if exists == "" {
			id := "proxy_request_" + s.newID()
			if err := insertSection(ctx, tx, Section{ID: id, Title: s.proxyTitle, Content: legacy}); err != nil {
				return err
			}
			migrated = true
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM legacy_proxy WHERE id = 1"); err != nil {
			return fmt.Errorf("drop legacy proxy text: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if migrated {
		logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "legacy.migrated",
			slog.Bool("migrated", true),
		)
	}
	return migrated, nil
}

// proxySectionID returns the id of the first sentinel-titled section or "".
func (s *Store) proxySectionID(ctx context.Context, tx *sqlx.Tx) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id, tx.Rebind(
		"SELECT id FROM sections WHERE title = ? ORDER BY position, id LIMIT 1"), s.proxyTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find proxy section: %w", err)
	}
	return id, nil
}

func insertSection(ctx context.Context, tx *sqlx.Tx, sec Section) error {
	var next int64
	if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(position), 0) + 1 FROM sections"); err != nil {
		return fmt.Errorf("next position: %w", err)
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO sections (id, title, content, position) VALUES (?, ?, ?, ?)"),
		sec.ID, sec.Title, sec.Content, next)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

// ListSections returns all sections in menu order after applying Normalize.
func (s *Store) ListSections(ctx context.Context) ([]Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.normalizeLocked(ctx); err != nil {
		return nil, err
	}
	var out []Section
	if err := s.db.SelectContext(ctx, &out,
		"SELECT id, title, content FROM sections ORDER BY position, id"); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return out, nil
}

// GetSection looks a section up by id.
func (s *Store) GetSection(ctx context.Context, id string) (Section, bool, error) {
	var sec Section
	err := s.db.GetContext(ctx, &sec, s.db.Rebind(
		"SELECT id, title, content FROM sections WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, false, nil
	}
	if err != nil {
		return Section{}, false, fmt.Errorf("get section: %w", err)
	}
	return sec, true, nil
}

// AddSection appends a new section to the end of the menu and returns its id.
func (s *Store) AddSection(ctx context.Context, title, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return insertSection(ctx, tx, Section{ID: id, Title: title, Content: content})
	})
	if err != nil {
		return "", err
	}
	logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "section.added",
		slog.String("section_id", id),
	)
	return id, nil
}

// DeleteSection removes a section; it reports false when the id is unknown.
func (s *Store) DeleteSection(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sections WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete section: %w", err)
	}
	if n > 0 {
		logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "section.deleted",
			slog.String("section_id", id),
		)
	}
	return n > 0, nil
}

// UpdateSection replaces the content of a section. Titles are immutable.
func (s *Store) UpdateSection(ctx context.Context, id, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.db.Rebind("UPDATE sections SET content = ? WHERE id = ?"), content, id)
	if err != nil {
		return false, fmt.Errorf("update section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update section: %w", err)
	}
	return n > 0, nil
}

type positioned struct {
	ID       string `db:"id"`
	Position int64  `db:"position"`
}

// MoveSection swaps a section with its neighbour in the given direction.
// It reports false for unknown ids and for moves past either end.
func (s *Store) MoveSection(ctx context.Context, id string, dir Direction) (bool, error) {
	if dir != DirectionUp && dir != DirectionDown {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var moved bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []positioned
		if err := tx.SelectContext(ctx, &rows, "SELECT id, position FROM sections ORDER BY position, id"); err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		idx := -1
		for i, r := range rows {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		other := idx - 1
		if dir == DirectionDown {
			other = idx + 1
		}
		if other < 0 || other >= len(rows) {
			return nil
		}
		rows[idx], rows[other] = rows[other], rows[idx]

		// Rewrite positions densely so duplicate positions from imports cannot stall a swap.
		stmt := tx.Rebind("UPDATE sections SET position = ? WHERE id = ?")
		for i, r := range rows {
			want := int64(i + 1)
			if r.Position == want {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt, want, r.ID); err != nil {
				return fmt.Errorf("update position: %w", err)
			}
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if moved {
		logger.LogEvent(ctx, logger.SVCContent, slog.LevelDebug, "section.moved",
			slog.String("section_id", id),
			slog.String("direction", string(dir)),
		)
	}
	return moved, nil
}

// ProxyText returns the content of the proxy section, or ProxyPlaceholder when none exists.
func (s *Store) ProxyText(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.normalizeLocked(ctx); err != nil {
		return "", err
	}
	var text string
	err := s.db.GetContext(ctx, &text, s.db.Rebind(
		"SELECT content FROM sections WHERE title = ? ORDER BY position, id LIMIT 1"), s.proxyTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return ProxyPlaceholder, nil
	}
	if err != nil {
		return "", fmt.Errorf("read proxy section: %w", err)
	}
	return text, nil
}

// SetProxyText creates or updates the proxy section and drops any legacy proxy text.
func (s *Store) SetProxyText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.proxySectionID(ctx, tx)
		if err != nil {
			return err
		}
		if id == "" {
			id = "proxy_request_" + s.newID()
			if err := insertSection(ctx, tx, Section{ID: id, Title: s.proxyTitle, Content: text}); err != nil {
				return err
			}
		} else if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE sections SET content = ? WHERE id = ?"), text, id); err != nil {
			return fmt.Errorf("update proxy section: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM legacy_proxy WHERE id = 1"); err != nil {
			return fmt.Errorf("drop legacy proxy text: %w", err)
		}
		logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "proxy.updated",
			slog.String("section_id", id),
		)
		return nil
	})
}

// ListQuizzes returns all quizzes in import order.
func (s *Store) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	var out []Quiz
	if err := s.db.SelectContext(ctx, &out, "SELECT id, title, content FROM quizzes ORDER BY position, id"); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return out, nil
}

// GetQuiz looks a quiz up by id.
func (s *Store) GetQuiz(ctx context.Context, id string) (Quiz, bool, error) {
	var q Quiz
	err := s.db.GetContext(ctx, &q, s.db.Rebind("SELECT id, title, content FROM quizzes WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, false, nil
	}
	if err != nil {
		return Quiz{}, false, fmt.Errorf("get quiz: %w", err)
	}
	return q, true, nil
}
