package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/storage"
)

type countingBlob struct {
	storage.BlobStore
	saves int
	fail  bool
}

func (c *countingBlob) Save(ctx context.Context, key string, b []byte) error {
	if c.fail {
		return errors.New("disk full")
	}
	c.saves++
	return c.BlobStore.Save(ctx, key, b)
}

func newTestStore(t *testing.T) (*WidgetStore, *countingBlob) {
	t.Helper()
	blob := &countingBlob{BlobStore: storage.NewMemoryStore()}
	s, err := NewWidgetStore(context.Background(), blob, "finboard-dashboard", nil)
	require.NoError(t, err)
	return s, blob
}

func quoteCard(id string, x int) models.WidgetConfig {
	return models.WidgetConfig{
		ID:    id,
		Kind:  models.KindCard,
		Title: "Apple",
		Source: models.DataSource{
			Provider:  models.ProviderFinnhub,
			Operation: "quote",
			Symbol:    "aapl",
		},
		Position: models.Position{X: x, Y: 0, W: 6, H: 4},
	}
}

func TestWidgetStoreAddThenRemoveRestoresState(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)

	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)
	before := s.List()
	persisted, err := blob.Load(ctx, "finboard-dashboard")
	require.NoError(t, err)

	_, err = s.Add(ctx, quoteCard("b", 6))
	require.NoError(t, err)
	removed, err := s.Remove(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, before, s.List())
	after, err := blob.Load(ctx, "finboard-dashboard")
	require.NoError(t, err)
	assert.JSONEq(t, string(persisted), string(after))
}

func TestWidgetStoreRemoveMissingIsNoop(t *testing.T) {
	s, blob := newTestStore(t)
	removed, err := s.Remove(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, blob.saves)
}

func TestWidgetStoreAddGeneratesIDAndCanonicalizes(t *testing.T) {
	s, _ := newTestStore(t)
	w, err := s.Add(context.Background(), quoteCard("", 0))
	require.NoError(t, err)
	assert.Len(t, w.ID, 36)
	assert.Equal(t, "AAPL", w.Source.Symbol)
	assert.Equal(t, "quote", w.Source.Operation)

	got, ok := s.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, w, got)
}

func TestWidgetStoreRejectsInvalidWidgets(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)

	_, err = s.Add(ctx, quoteCard("a", 6))
	assert.ErrorIs(t, err, ErrDuplicateWidget)

	bad := quoteCard("k", 0)
	bad.Kind = "pie"
	_, err = s.Add(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidWidget)

	wide := quoteCard("w", 0)
	wide.Position.W = 13
	_, err = s.Add(ctx, wide)
	assert.ErrorIs(t, err, ErrInvalidWidget)

	negative := quoteCard("n", 0)
	negative.RefreshIntervalSecs = null.IntFrom(-5)
	_, err = s.Add(ctx, negative)
	assert.ErrorIs(t, err, ErrInvalidWidget)

	unknownOp := quoteCard("u", 0)
	unknownOp.Source.Operation = "stock/bogus"
	_, err = s.Add(ctx, unknownOp)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "source.operation", ve.Field)

	custom := quoteCard("c", 0)
	custom.Source = models.DataSource{Provider: models.ProviderCustom}
	_, err = s.Add(ctx, custom)
	assert.ErrorIs(t, err, ErrInvalidWidget)

	assert.Len(t, s.List(), 1)
	assert.Equal(t, 1, blob.saves)
}

func TestWidgetStoreFailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)

	blob.fail = true
	_, err = s.Add(ctx, quoteCard("b", 6))
	require.Error(t, err)
	title := "Renamed"
	_, err = s.Update(ctx, "a", models.WidgetPatch{Title: &title})
	require.Error(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Apple", list[0].Title)
}

func TestWidgetStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)

	title := "Apple quote"
	every := 0
	w, err := s.Update(ctx, "a", models.WidgetPatch{Title: &title, RefreshIntervalSecs: &every})
	require.NoError(t, err)
	assert.Equal(t, "Apple quote", w.Title)
	assert.True(t, w.RefreshIntervalSecs.Valid)
	assert.Equal(t, int64(0), w.RefreshIntervalSecs.Int64)
	assert.Equal(t, "AAPL", w.Source.Symbol)

	_, err = s.Update(ctx, "ghost", models.WidgetPatch{Title: &title})
	assert.ErrorIs(t, err, ErrWidgetNotFound)
}

func TestWidgetStoreUpdateUnknownIDLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)
	before := s.List()
	saves := blob.saves
	hooks := 0
	s.OnChange(func([]models.WidgetConfig) { hooks++ })

	title := "Ghost"
	w, err := s.Update(ctx, "ghost", models.WidgetPatch{Title: &title})
	require.ErrorIs(t, err, ErrWidgetNotFound)
	assert.Empty(t, w.ID)
	assert.Equal(t, saves, blob.saves)
	assert.Zero(t, hooks)
	assert.Equal(t, before, s.List())
}

func TestWidgetStoreApplyLayoutSavesOnlyRealDeltas(t *testing.T) {
	ctx := context.Background()
	s, blob := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)
	_, err = s.Add(ctx, quoteCard("b", 6))
	require.NoError(t, err)
	saves := blob.saves

	changed, err := s.ApplyLayout(ctx, []models.LayoutItem{
		{I: "a", X: 0, Y: 0, W: 6, H: 4},
		{I: PlaceholderID, X: 0, Y: 8, W: 6, H: 4},
		{I: "ghost", X: 1, Y: 1, W: 1, H: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, saves, blob.saves)

	changed, err = s.ApplyLayout(ctx, []models.LayoutItem{
		{I: "a", X: 0, Y: 0, W: 6, H: 4},
		{I: "b", X: 0, Y: 4, W: 12, H: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, changed)
	assert.Equal(t, saves+1, blob.saves)

	b, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 0, Y: 4, W: 12, H: 3}, b.Position)

	_, err = s.ApplyLayout(ctx, []models.LayoutItem{{I: "a", X: 8, Y: 0, W: 6, H: 4}})
	assert.ErrorIs(t, err, ErrInvalidWidget)
}

func TestWidgetStoreExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)
	chart := models.WidgetConfig{
		Kind:  models.KindChart,
		Title: "IBM daily",
		Source: models.DataSource{
			Provider:  models.ProviderAlphaVantage,
			Operation: "TIME_SERIES_DAILY",
			Symbol:    "IBM",
			Params:    map[string]string{"outputsize": "compact"},
		},
		RefreshIntervalSecs: null.IntFrom(0),
		Fields:              []string{"close"},
		Position:            models.Position{X: 0, Y: 4, W: 12, H: 4, MinW: 4},
	}
	_, err := src.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)
	_, err = src.Add(ctx, chart)
	require.NoError(t, err)

	b, err := json.Marshal(src.Export())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"version":1`)

	doc, err := ParseDocument(b)
	require.NoError(t, err)
	dst, _ := newTestStore(t)
	require.NoError(t, dst.Import(ctx, doc))
	assert.Equal(t, src.List(), dst.List())
}

func TestWidgetStoreImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)

	err = s.Import(ctx, models.DashboardDocument{Widgets: []models.WidgetConfig{quoteCard("x", 0), quoteCard("x", 6)}})
	assert.ErrorIs(t, err, ErrDuplicateWidget)
	require.Len(t, s.List(), 1)
	assert.Equal(t, "a", s.List()[0].ID)
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"widgets":[]}`))
	require.NoError(t, err)
	assert.Equal(t, models.ExportVersion, doc.Version)

	_, err = ParseDocument([]byte(`{"version":2,"widgets":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = ParseDocument([]byte(`{"layout":[]}`))
	assert.ErrorIs(t, err, ErrInvalidWidget)

	_, err = ParseDocument([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidWidget)
}

func TestWidgetStoreReloadsPersistedState(t *testing.T) {
	ctx := context.Background()
	blob := storage.NewMemoryStore()
	s, err := NewWidgetStore(ctx, blob, "k", nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)

	reloaded, err := NewWidgetStore(ctx, blob, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, s.List(), reloaded.List())

	require.NoError(t, blob.Save(ctx, "corrupt", []byte(`{"widgets":"nope"}`)))
	_, err = NewWidgetStore(ctx, blob, "corrupt", nil)
	assert.Error(t, err)
}

func TestWidgetStoreOnChange(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var got [][]models.WidgetConfig
	s.OnChange(func(ws []models.WidgetConfig) { got = append(got, ws) })

	_, err := s.Add(ctx, quoteCard("a", 0))
	require.NoError(t, err)
	_, err = s.Remove(ctx, "a")
	require.NoError(t, err)
	_, err = s.Remove(ctx, "a")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Empty(t, got[1])
}
