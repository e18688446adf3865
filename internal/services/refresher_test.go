package services

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/backend-go/internal/models"
)

type fakeMarket struct {
	mu    sync.Mutex
	calls []url.Values
	fn    func(ctx context.Context, name string, params url.Values) (Payload, error)
}

func (f *fakeMarket) Query(ctx context.Context, _ models.Provider, name string, params url.Values) (Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()
	return f.fn(ctx, name, params)
}

func (f *fakeMarket) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quotePayload(symbol string, price float64) Payload {
	b, _ := json.Marshal(models.Quote{Symbol: symbol, Price: price})
	return Payload{Provider: models.ProviderFinnhub, Operation: models.OpQuote, Function: "quote", Data: b}
}

func echoMarket() *fakeMarket {
	return &fakeMarket{fn: func(_ context.Context, _ string, p url.Values) (Payload, error) {
		return quotePayload(p.Get("symbol"), 1), nil
	}}
}

func newTestRefresher(m MarketQuerier) *Refresher {
	return NewRefresher(m, nil, RefresherOptions{DefaultInterval: time.Hour, FetchTimeout: time.Second})
}

func stateOf(r *Refresher, id string) models.RenderState {
	st, _ := r.State(id)
	return st
}

func TestRefresherMissingSymbolFailsWithoutFetching(t *testing.T) {
	m := echoMarket()
	r := newTestRefresher(m)
	defer r.Stop()

	w := quoteCard("a", 0)
	w.Source.Symbol = ""
	r.Sync([]models.WidgetConfig{w})

	require.Eventually(t, func() bool { return stateOf(r, "a").Status == models.StatusError }, time.Second, 5*time.Millisecond)
	st := stateOf(r, "a")
	assert.Equal(t, "No symbol configured", st.Error)
	assert.False(t, st.Retryable)
	assert.Equal(t, 0, m.callCount())
}

func TestRefresherRefreshNow(t *testing.T) {
	m := echoMarket()
	r := newTestRefresher(m)
	defer r.Stop()

	r.Sync([]models.WidgetConfig{quoteCard("a", 0)})
	st, err := r.RefreshNow(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, st.Status)
	assert.JSONEq(t, `{"symbol":"AAPL","price":1,"change":0,"changePercent":0}`, string(st.Data.(json.RawMessage)))

	_, err = r.RefreshNow(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrWidgetNotFound)
}

func TestRefresherErrorStateCarriesRetryable(t *testing.T) {
	m := &fakeMarket{fn: func(context.Context, string, url.Values) (Payload, error) {
		return Payload{}, vendorErr(models.ProviderFinnhub, "quote", ErrRateLimited, "API limit reached", nil)
	}}
	r := newTestRefresher(m)
	defer r.Stop()

	r.Sync([]models.WidgetConfig{quoteCard("a", 0)})
	st, err := r.RefreshNow(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, st.Status)
	assert.True(t, st.Retryable)
	assert.Nil(t, st.Data)
}

func TestRefresherDropsStaleResults(t *testing.T) {
	release := make(chan struct{})
	m := &fakeMarket{fn: func(ctx context.Context, _ string, p url.Values) (Payload, error) {
		if p.Get("symbol") == "OLD" {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return quotePayload(p.Get("symbol"), 1), nil
	}}
	r := newTestRefresher(m)
	defer r.Stop()

	w := quoteCard("a", 0)
	w.Source.Symbol = "OLD"
	r.Sync([]models.WidgetConfig{w})
	require.Eventually(t, func() bool { return m.callCount() == 1 }, time.Second, 5*time.Millisecond)

	w.Source.Symbol = "NEW"
	r.Sync([]models.WidgetConfig{w})
	isSymbol := func(sym string) bool {
		st := stateOf(r, "a")
		if st.Status != models.StatusReady {
			return false
		}
		var q models.Quote
		_ = json.Unmarshal(st.Data.(json.RawMessage), &q)
		return q.Symbol == sym
	}
	require.Eventually(t, func() bool { return isSymbol("NEW") }, time.Second, 5*time.Millisecond)

	close(release)
	assert.Never(t, func() bool { return isSymbol("OLD") }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestRefresherSchedulesByCadence(t *testing.T) {
	r := newTestRefresher(echoMarket())
	defer r.Stop()

	once := quoteCard("once", 0)
	once.RefreshIntervalSecs = null.IntFrom(0)
	periodic := quoteCard("periodic", 6)
	periodic.RefreshIntervalSecs = null.IntFrom(30)
	defaulted := quoteCard("defaulted", 0)
	defaulted.Position.Y = 4

	r.Sync([]models.WidgetConfig{once, periodic, defaulted})
	assert.Len(t, r.cron.Entries(), 2)
	assert.Equal(t, time.Hour, r.Interval(defaulted))
	assert.Equal(t, 30*time.Second, r.Interval(periodic))

	r.Sync([]models.WidgetConfig{once})
	assert.Empty(t, r.cron.Entries())
	_, ok := r.State("periodic")
	assert.False(t, ok, "removed widgets lose their state")
}

func TestRefresherKeepsJobWhenKeyUnchanged(t *testing.T) {
	r := newTestRefresher(echoMarket())
	defer r.Stop()

	w := quoteCard("a", 0)
	r.Sync([]models.WidgetConfig{w})
	r.mu.Lock()
	gen := r.jobs["a"].gen
	r.mu.Unlock()

	w.Title = "Renamed"
	w.Position.X = 6
	r.Sync([]models.WidgetConfig{w})
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, gen, r.jobs["a"].gen)
	assert.Equal(t, "Renamed", r.jobs["a"].widget.Title)
}

func TestRefresherTableSymbolsFetchOneQuoteEach(t *testing.T) {
	m := &fakeMarket{fn: func(_ context.Context, _ string, p url.Values) (Payload, error) {
		if p.Get("symbol") == "BAD" {
			return Payload{}, vendorErr(models.ProviderFinnhub, "quote", ErrNoData, "", nil)
		}
		return quotePayload(p.Get("symbol"), 2), nil
	}}
	r := newTestRefresher(m)
	defer r.Stop()

	table := models.WidgetConfig{
		ID:       "t",
		Kind:     models.KindTable,
		Source:   models.DataSource{Provider: models.ProviderFinnhub, Operation: "quote", Symbols: []string{"AAPL", "BAD", "MSFT"}},
		Position: models.Position{X: 0, Y: 0, W: 12, H: 4},
	}
	r.Sync([]models.WidgetConfig{table})
	st, err := r.RefreshNow(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, models.StatusReady, st.Status)

	page, err := BuildTablePage(st.Data, []string{"symbol"}, 1, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "MSFT", page.Rows[1]["symbol"])
}

func TestRefresherPublishesStates(t *testing.T) {
	r := newTestRefresher(echoMarket())
	defer r.Stop()
	ch, unsubscribe := r.Hub().Subscribe()
	defer unsubscribe()

	r.Sync([]models.WidgetConfig{quoteCard("a", 0)})
	first := <-ch
	assert.Equal(t, "a", first.WidgetID)
	assert.Equal(t, models.StatusLoading, first.Status)

	select {
	case next := <-ch:
		assert.Equal(t, models.StatusReady, next.Status)
	case <-time.After(time.Second):
		t.Fatal("expected a ready state")
	}
}

func TestSourceParams(t *testing.T) {
	params, err := SourceParams(models.DataSource{
		Provider:  models.ProviderAlphaVantage,
		Operation: "TIME_SERIES_INTRADAY",
		Symbol:    "IBM",
		Params:    map[string]string{"interval": "5min"},
	})
	require.NoError(t, err)
	assert.Equal(t, "IBM", params.Get("symbol"))
	assert.Equal(t, "5min", params.Get("interval"))

	_, err = SourceParams(models.DataSource{Provider: models.ProviderAlphaVantage, Operation: "OVERVIEW"})
	assert.ErrorIs(t, err, ErrNoSymbol)

	params, err = SourceParams(models.DataSource{Provider: models.ProviderFinnhub, Operation: "stock/gainers"})
	require.NoError(t, err)
	assert.Empty(t, params)
}
