package app

import (
	"context"
	"fmt"
	"os"

	"github.com/m3rciful/cpabot/internal/analytics"
	"github.com/m3rciful/cpabot/internal/content"
)

// ImportContentFile loads a legacy content document (sections, proxy text, quizzes)
// and merges it into the store, then folds any imported proxy text into a section.
func (a *App) ImportContentFile(ctx context.Context, path string) (content.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return content.ImportReport{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := content.DecodeLegacyDocument(f)
	if err != nil {
		return content.ImportReport{}, err
	}
	rep, err := a.Content.ImportLegacy(ctx, doc)
	if err != nil {
		return rep, err
	}
	if _, err := a.Content.Normalize(ctx); err != nil {
		return rep, err
	}
	return rep, nil
}

// ImportStatsFile loads a legacy analytics document (users and logins).
func (a *App) ImportStatsFile(ctx context.Context, path string) (analytics.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return analytics.ImportReport{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := analytics.DecodeLegacyStats(f)
	if err != nil {
		return analytics.ImportReport{}, err
	}
	return a.Analytics.ImportLegacy(ctx, doc)
}

// Snapshot is what the stats command prints.
type Snapshot struct {
	Stats  analytics.Stats
	Recent []analytics.User
}

// Snapshot reads the usage counters and the latest joins.
func (a *App) Snapshot(ctx context.Context, recent int) (Snapshot, error) {
	st, err := a.Analytics.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	users, err := a.Analytics.RecentUsers(ctx, recent)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Stats: st, Recent: users}, nil
}
