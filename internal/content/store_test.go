package content

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cpabot/core/database"
	"github.com/m3rciful/cpabot/core/database/dbtest"
)

func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	db := dbtest.Open(t)
	var n int
	var mu sync.Mutex
	store := NewStore(db, Options{NewID: func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%03d", n)
	}})
	return store, db
}

func titles(secs []Section) []string {
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Title
	}
	return out
}

func putLegacyProxy(t *testing.T, db *sqlx.DB, text string) {
	t.Helper()
	_, err := db.Exec(db.Rebind("INSERT INTO legacy_proxy (id, proxy_text) VALUES (1, ?)"), text)
	require.NoError(t, err)
}

func TestSectionCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	id, err := store.AddSection(ctx, "Intro", "Hello")
	require.NoError(t, err)

	sec, ok, err := store.GetSection(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Section{ID: id, Title: "Intro", Content: "Hello"}, sec)

	updated, err := store.UpdateSection(ctx, id, "Bye")
	require.NoError(t, err)
	assert.True(t, updated)

	sec, _, err = store.GetSection(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Intro", sec.Title)
	assert.Equal(t, "Bye", sec.Content)

	deleted, err := store.DeleteSection(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = store.GetSection(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissingSectionOperationsReportFalse(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	ok, err := store.DeleteSection(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.UpdateSection(ctx, "ghost", "x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MoveSection(ctx, "ghost", DirectionUp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddSectionAppendsLast(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, title := range []string{"A", "B", "C"} {
		_, err := store.AddSection(ctx, title, "")
		require.NoError(t, err)
	}
	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles(secs))
}

func TestMoveSectionSwapsNeighbours(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	ids := map[string]string{}
	for _, title := range []string{"A", "B", "C"} {
		id, err := store.AddSection(ctx, title, "")
		require.NoError(t, err)
		ids[title] = id
	}

	moved, err := store.MoveSection(ctx, ids["B"], DirectionUp)
	require.NoError(t, err)
	assert.True(t, moved)
	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, titles(secs))

	moved, err = store.MoveSection(ctx, ids["B"], DirectionUp)
	require.NoError(t, err)
	assert.False(t, moved, "first section cannot move up")

	moved, err = store.MoveSection(ctx, ids["C"], DirectionDown)
	require.NoError(t, err)
	assert.False(t, moved, "last section cannot move down")

	moved, err = store.MoveSection(ctx, ids["A"], DirectionDown)
	require.NoError(t, err)
	assert.True(t, moved)
	secs, err = store.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, titles(secs))
	assert.Len(t, secs, 3)
}

func TestMoveSectionRecoversFromDuplicatePositions(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	for _, id := range []string{"a", "b"} {
		_, err := db.Exec(db.Rebind("INSERT INTO sections (id, title, content, position) VALUES (?, ?, '', 1)"), id, strings.ToUpper(id))
		require.NoError(t, err)
	}
	moved, err := store.MoveSection(ctx, "b", DirectionUp)
	require.NoError(t, err)
	assert.True(t, moved)

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(secs))
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" UP ")
	assert.True(t, ok)
	assert.Equal(t, DirectionUp, d)
	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}

func TestListSectionsMigratesLegacyProxyOnce(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	_, err := store.AddSection(ctx, "Intro", "x")
	require.NoError(t, err)
	putLegacyProxy(t, db, "use proxy X")

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, secs, 2)
	last := secs[1]
	assert.Equal(t, DefaultProxyTitle, last.Title)
	assert.Equal(t, "use proxy X", last.Content)
	assert.True(t, strings.HasPrefix(last.ID, "proxy_request_"))

	var legacy int
	require.NoError(t, db.Get(&legacy, "SELECT COUNT(*) FROM legacy_proxy"))
	assert.Zero(t, legacy)

	again, err := store.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, secs, again)
}

func TestNormalizeDropsLegacyWhenProxySectionExists(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	require.NoError(t, store.SetProxyText(ctx, "current"))
	putLegacyProxy(t, db, "stale")

	migrated, err := store.Normalize(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "current", secs[0].Content)

	var legacy int
	require.NoError(t, db.Get(&legacy, "SELECT COUNT(*) FROM legacy_proxy"))
	assert.Zero(t, legacy)
}

func TestNormalizeWithoutLegacyIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	migrated, err := store.Normalize(context.Background())
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestProxyTextShims(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	text, err := store.ProxyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProxyPlaceholder, text)

	putLegacyProxy(t, db, "legacy value")
	text, err = store.ProxyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy value", text)

	require.NoError(t, store.SetProxyText(ctx, "new value"))
	require.NoError(t, store.SetProxyText(ctx, "newer value"))

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "newer value", secs[0].Content)

	text, err = store.ProxyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer value", text)
}

func TestCustomProxyTitle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.Open(t), Options{ProxyTitle: "Proxy"})
	assert.Equal(t, "Proxy", store.ProxyTitle())

	require.NoError(t, store.SetProxyText(ctx, "p"))
	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "Proxy", secs[0].Title)
	assert.NotEmpty(t, secs[0].ID)
}

func TestConcurrentAddsKeepEverySection(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AddSection(ctx, fmt.Sprintf("S%d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	assert.Len(t, secs, 10)
}

func TestWritesFailOnClosedDatabase(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)
	_, err := store.AddSection(ctx, "Intro", "Hello")
	require.NoError(t, err)
	_, err = store.AddSection(ctx, "Offers", "How offers work")
	require.NoError(t, err)
	before, err := store.ListSections(ctx)
	require.NoError(t, err)

	var path string
	require.NoError(t, db.Get(&path, "SELECT file FROM pragma_database_list WHERE name = 'main'"))
	require.NoError(t, db.Close())

	_, err = store.AddSection(ctx, "Late", "never stored")
	assert.Error(t, err)
	_, err = store.MoveSection(ctx, before[1].ID, DirectionUp)
	assert.Error(t, err)
	assert.Error(t, store.SetProxyText(ctx, "new proxy"))

	reopened, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	after, err := NewStore(reopened, Options{}).ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
