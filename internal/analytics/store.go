// Package analytics records who used the bot and when.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cpabot/core/logger"
)

// User is the first-seen snapshot of a Telegram user.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	JoinedAt  time.Time `db:"-"`
}

// Stats aggregates usage counters.
type Stats struct {
	TotalUsers        int
	TotalInteractions int
	ActiveToday       int
}

// Store is the SQL-backed analytics store. Timestamps are persisted as RFC 3339 UTC strings.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RegisterUser stores u if its id has not been seen before. Metadata of known users
// is never overwritten. It reports whether the user was new.
func (s *Store) RegisterUser(ctx context.Context, u User) (bool, error) {
	joined := u.JoinedAt
	if joined.IsZero() {
		joined = s.now()
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, username, first_name, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		u.ID, u.Username, u.FirstName, formatTime(joined))
	if err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	if n > 0 {
		logger.LogEvent(ctx, logger.SVCAnalytics, slog.LevelInfo, "user.registered",
			slog.Int64("user_id", u.ID),
			slog.Bool("is_new", true),
		)
	}
	return n > 0, nil
}

// LogInteraction appends an interaction event stamped with the current time.
func (s *Store) LogInteraction(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO interactions (user_id, occurred_at) VALUES (?, ?)"),
		userID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("log interaction: %w", err)
	}
	return nil
}

// Stats computes totals and the number of distinct users active on the current UTC day.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.GetContext(ctx, &st.TotalUsers, "SELECT COUNT(*) FROM users"); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if err := s.db.GetContext(ctx, &st.TotalInteractions, "SELECT COUNT(*) FROM interactions"); err != nil {
		return Stats{}, fmt.Errorf("count interactions: %w", err)
	}
	today := s.now().UTC().Format("2006-01-02")
	if err := s.db.GetContext(ctx, &st.ActiveToday, s.db.Rebind(
		"SELECT COUNT(DISTINCT user_id) FROM interactions WHERE occurred_at LIKE ?"), today+"%"); err != nil {
		return Stats{}, fmt.Errorf("count active users: %w", err)
	}
	return st, nil
}

type userRow struct {
	User
	JoinedAtRaw string `db:"joined_at"`
}

// RecentUsers returns the last limit registered users, oldest first.
func (s *Store) RecentUsers(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT id, username, first_name, joined_at FROM (
			SELECT seq, id, username, first_name, joined_at FROM users ORDER BY seq DESC LIMIT ?
		 ) recent ORDER BY seq`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	out := make([]User, len(rows))
	for i, r := range rows {
		u := r.User
		if t, err := time.Parse(time.RFC3339Nano, r.JoinedAtRaw); err == nil {
			u.JoinedAt = t
		}
		out[i] = u
	}
	return out, nil
}

// LegacyStats mirrors the stats.json file maintained by the previous version of the bot.
type LegacyStats struct {
	Users []struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"firstName"`
		JoinedAt  string `json:"joinedAt"`
	} `json:"users"`
	Logins []struct {
		UserID    int64  `json:"userId"`
		Timestamp string `json:"timestamp"`
	} `json:"logins"`
}

// ImportReport summarizes a legacy import.
type ImportReport struct {
	Users        int
	Interactions int
	Skipped      int
}

// DecodeLegacyStats parses a stats.json file written by the previous version.
func DecodeLegacyStats(r io.Reader) (LegacyStats, error) {
	var doc LegacyStats
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return LegacyStats{}, fmt.Errorf("decode legacy stats: %w", err)
	}
	return doc, nil
}

// ImportLegacy loads users and interactions from a legacy stats file in one transaction.
// Known users are kept as they are; entries with unparsable timestamps are skipped.
func (s *Store) ImportLegacy(ctx context.Context, doc LegacyStats) (ImportReport, error) {
	var rep ImportReport
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return rep, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userStmt := tx.Rebind(`INSERT INTO users (id, username, first_name, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	for _, u := range doc.Users {
		joined, err := time.Parse(time.RFC3339Nano, u.JoinedAt)
		if u.ID == 0 || err != nil {
			rep.Skipped++
			continue
		}
		res, err := tx.ExecContext(ctx, userStmt, u.ID, u.Username, u.FirstName, formatTime(joined))
		if err != nil {
			return ImportReport{}, fmt.Errorf("import user %d: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rep.Users++
		}
	}

	loginStmt := tx.Rebind("INSERT INTO interactions (user_id, occurred_at) VALUES (?, ?)")
	for _, l := range doc.Logins {
		ts, err := time.Parse(time.RFC3339Nano, l.Timestamp)
		if l.UserID == 0 || err != nil {
			rep.Skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx, loginStmt, l.UserID, formatTime(ts)); err != nil {
			return ImportReport{}, fmt.Errorf("import interaction: %w", err)
		}
		rep.Interactions++
	}

	if err := tx.Commit(); err != nil {
		return ImportReport{}, fmt.Errorf("commit tx: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCAnalytics, slog.LevelInfo, "legacy.imported",
		slog.Int("users", rep.Users),
		slog.Int("interactions", rep.Interactions),
		slog.Int("skipped", rep.Skipped),
	)
	return rep, nil
}
