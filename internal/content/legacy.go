package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cpabot/core/logger"
)

var defaultSections = []Section{
	{
		ID:    "cpa_intro",
		Title: "What is CPA?",
		Content: "CPA stands for Cost Per Action. It is a marketing model where the advertiser pays the publisher " +
			"when a user completes a specific action such as filling in a survey or installing an app.",
	},
	{
		ID:    "surveys",
		Title: "Earning from surveys",
		Content: "Surveys collect opinions in exchange for rewards. To succeed, answer honestly and pick " +
			"trustworthy companies.",
	},
	{
		ID:    "games",
		Title: "Earning from games",
		Content: "You can earn by trying games and reaching certain levels. These offers take time but the " +
			"payouts can be worthwhile.",
	},
}

// DefaultSections returns a copy of the sections a brand-new store is seeded with.
func DefaultSections() []Section {
	out := make([]Section, len(defaultSections))
	copy(out, defaultSections)
	return out
}

// SeedDefaults fills an empty store with DefaultSections. Stores that hold any section
// or a legacy proxy text are left untouched. It reports whether anything was written.
func (s *Store) SeedDefaults(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seeded bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var sections, legacy int
		if err := tx.GetContext(ctx, &sections, "SELECT COUNT(*) FROM sections"); err != nil {
			return fmt.Errorf("count sections: %w", err)
		}
		if err := tx.GetContext(ctx, &legacy, "SELECT COUNT(*) FROM legacy_proxy"); err != nil {
			return fmt.Errorf("count legacy proxy: %w", err)
		}
		if sections > 0 || legacy > 0 {
			return nil
		}
		for _, sec := range defaultSections {
			if err := insertSection(ctx, tx, sec); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "content.seeded",
			slog.Int("sections", len(defaultSections)),
		)
	}
	return seeded, nil
}

// DecodeLegacyDocument parses a db.json file written by the previous version.
func DecodeLegacyDocument(r io.Reader) (LegacyDocument, error) {
	var doc LegacyDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return LegacyDocument{}, fmt.Errorf("decode legacy content: %w", err)
	}
	return doc, nil
}

// ImportLegacy copies a legacy document into the store, keeping ids and order.
// Sections whose id already exists are skipped. A legacy proxy text is stored as-is
// so the next read migrates it through Normalize.
func (s *Store) ImportLegacy(ctx context.Context, doc LegacyDocument) (ImportReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep ImportReport
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, sec := range doc.Sections {
			if sec.ID == "" {
				rep.SkippedSections++
				continue
			}
			var n int
			if err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM sections WHERE id = ?"), sec.ID); err != nil {
				return fmt.Errorf("check section %s: %w", sec.ID, err)
			}
			if n > 0 {
				rep.SkippedSections++
				continue
			}
			if err := insertSection(ctx, tx, sec); err != nil {
				return err
			}
			rep.Sections++
		}

		if doc.ProxyText != nil && *doc.ProxyText != "" {
			_, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO legacy_proxy (id, proxy_text) VALUES (1, ?)
				 ON CONFLICT (id) DO UPDATE SET proxy_text = excluded.proxy_text`), *doc.ProxyText)
			if err != nil {
				return fmt.Errorf("store legacy proxy text: %w", err)
			}
			rep.LegacyProxy = true
		}

		var base int64
		if err := tx.GetContext(ctx, &base, "SELECT COALESCE(MAX(position), 0) FROM quizzes"); err != nil {
			return fmt.Errorf("quiz position: %w", err)
		}
		stmt := tx.Rebind(`INSERT INTO quizzes (id, title, content, position) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`)
		for _, q := range doc.Quizzes {
			if q.ID == "" {
				continue
			}
			res, err := tx.ExecContext(ctx, stmt, q.ID, q.Title, q.Content, base+1)
			if err != nil {
				return fmt.Errorf("insert quiz %s: %w", q.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				base++
				rep.Quizzes++
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, err
	}
	logger.LogEvent(ctx, logger.SVCContent, slog.LevelInfo, "legacy.imported",
		slog.Int("sections", rep.Sections),
		slog.Int("skipped", rep.SkippedSections),
		slog.Int("quizzes", rep.Quizzes),
		slog.Bool("legacy_proxy", rep.LegacyProxy),
	)
	return rep, nil
}
