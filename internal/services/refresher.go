package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"finboard/backend-go/internal/metrics"
	"finboard/backend-go/internal/models"
)

type MarketQuerier interface {
	Query(ctx context.Context, p models.Provider, name string, params url.Values) (Payload, error)
}

type CustomFetcher interface {
	Fetch(ctx context.Context, rawURL string, query map[string]string) (any, error)
}

type RefresherOptions struct {
	DefaultInterval time.Duration
	FetchTimeout    time.Duration
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Hub             *Hub
}

// Refresher keeps every widget's render state current. Each widget owns one
// job; a job whose data-source key changes is replaced and its generation
// bumped so results still in flight for the old key are discarded.
type Refresher struct {
	market MarketQuerier
	custom CustomFetcher
	cron   *cron.Cron
	opts   RefresherOptions

	mu      sync.Mutex
	jobs    map[string]*widgetJob
	states  map[string]models.RenderState
	nextGen uint64

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

type widgetJob struct {
	key    string
	gen    uint64
	entry  cron.EntryID
	widget models.WidgetConfig
}

func NewRefresher(market MarketQuerier, custom CustomFetcher, opts RefresherOptions) *Refresher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		market: market,
		custom: custom,
		cron:   cron.New(),
		opts:   opts,
		jobs:   make(map[string]*widgetJob),
		states: make(map[string]models.RenderState),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

func (r *Refresher) Hub() *Hub { return r.opts.Hub }

func (r *Refresher) Start() {
	r.cron.Start()
	r.opts.Logger.Info("widget refresher started")
}

// Stop halts scheduling, cancels in-flight fetches and waits for running
// jobs to return.
func (r *Refresher) Stop() {
	done := r.cron.Stop()
	r.cancel()
	<-done.Done()
	r.opts.Logger.Info("widget refresher stopped")
}

// Interval is the cadence a widget refreshes at; zero means fetch once.
func (r *Refresher) Interval(w models.WidgetConfig) time.Duration {
	if !w.RefreshIntervalSecs.Valid {
		return r.opts.DefaultInterval
	}
	return time.Duration(w.RefreshIntervalSecs.Int64) * time.Second
}

// Sync reconciles jobs with the current widget list.
func (r *Refresher) Sync(widgets []models.WidgetConfig) {
	var runs []func()

	r.mu.Lock()
	present := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		present[w.ID] = true
		key := r.jobKey(w)
		if job, ok := r.jobs[w.ID]; ok {
			if job.key == key {
				job.widget = w
				continue
			}
			r.cron.Remove(job.entry)
		}
		r.nextGen++
		job := &widgetJob{key: key, gen: r.nextGen, widget: w}
		r.jobs[w.ID] = job
		st := r.stateLocked(w.ID, models.StatusLoading, nil, nil)
		r.publishLocked(st)

		id, gen := w.ID, job.gen
		if every := r.Interval(w); every > 0 {
			job.entry = r.cron.Schedule(cron.Every(every), cron.FuncJob(func() { r.run(id, gen) }))
		}
		runs = append(runs, func() { r.run(id, gen) })
	}
	for id, job := range r.jobs {
		if present[id] {
			continue
		}
		r.cron.Remove(job.entry)
		delete(r.jobs, id)
		delete(r.states, id)
	}
	r.mu.Unlock()

	for _, run := range runs {
		go run()
	}
}

// State returns the last render state for id.
func (r *Refresher) State(id string) (models.RenderState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	return st, ok
}

// RefreshNow fetches id synchronously and returns the resulting state.
func (r *Refresher) RefreshNow(ctx context.Context, id string) (models.RenderState, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return models.RenderState{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	w, gen := job.widget, job.gen
	r.mu.Unlock()
	return r.refresh(ctx, id, gen, w), nil
}

func (r *Refresher) run(id string, gen uint64) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.gen != gen {
		r.mu.Unlock()
		return
	}
	w := job.widget
	r.mu.Unlock()
	r.refresh(r.ctx, id, gen, w)
}

func (r *Refresher) refresh(parent context.Context, id string, gen uint64, w models.WidgetConfig) models.RenderState {
	ctx, cancel := context.WithTimeout(parent, r.opts.FetchTimeout)
	defer cancel()
	data, err := r.fetch(ctx, w)

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.gen != gen {
		return r.states[id]
	}
	st := r.stateLocked(id, models.StatusReady, data, err)
	r.publishLocked(st)
	r.opts.Metrics.ObserveRefresh(string(st.Status))
	if err != nil {
		r.opts.Logger.Debug("widget refresh failed", zap.String("widget", id), zap.Error(err))
	}
	return st
}

func (r *Refresher) stateLocked(id string, status models.RenderStatus, data any, err error) models.RenderState {
	st := models.RenderState{
		WidgetID:   id,
		Status:     status,
		Data:       data,
		UpdatedISO: r.now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		st.Status = models.StatusError
		st.Data = nil
		st.Error = PublicMessage(err)
		st.Retryable = Retryable(err)
	}
	r.states[id] = st
	return st
}

func (r *Refresher) publishLocked(st models.RenderState) {
	r.opts.Hub.Publish(st)
}

// fetch loads the data a widget renders. Symbol-bound operations without a
// symbol fail before any request is made.
func (r *Refresher) fetch(ctx context.Context, w models.WidgetConfig) (any, error) {
	src := w.Source
	if src.IsCustom() {
		if r.custom == nil {
			return nil, fmt.Errorf("%w: custom sources disabled", ErrHostNotAllowed)
		}
		return r.custom.Fetch(ctx, src.URL, src.Query)
	}
	if w.Kind == models.KindTable && len(src.Symbols) > 0 {
		return r.fetchSymbols(ctx, src)
	}
	params, err := SourceParams(src)
	if err != nil {
		return nil, err
	}
	p, err := r.market.Query(ctx, src.Provider, src.Operation, params)
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

// fetchSymbols loads one quote per listed symbol. Symbols that fail are left
// out; only a total failure is an error.
func (r *Refresher) fetchSymbols(ctx context.Context, src models.DataSource) (any, error) {
	rows := make([]json.RawMessage, 0, len(src.Symbols))
	var firstErr error
	for _, sym := range src.Symbols {
		p, err := r.market.Query(ctx, src.Provider, string(models.OpQuote), url.Values{"symbol": {sym}})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
				break
			}
			continue
		}
		rows = append(rows, p.Data)
	}
	if len(rows) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return rows, nil
}

// SourceParams builds the vendor parameter bag for a widget source.
func SourceParams(src models.DataSource) (url.Values, error) {
	spec, err := LookupOperation(src.Provider, src.Operation)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	for k, v := range src.Params {
		params.Set(k, v)
	}
	if sym := strings.ToUpper(strings.TrimSpace(src.Symbol)); sym != "" {
		params.Set("symbol", sym)
	}
	if spec.NeedsSymbol() && strings.TrimSpace(params.Get("symbol")) == "" {
		return nil, ErrNoSymbol
	}
	return params, nil
}

func (r *Refresher) jobKey(w models.WidgetConfig) string {
	src := w.Source
	parts := []string{
		w.ID,
		string(w.Kind),
		string(src.Provider),
		src.Operation,
		src.Symbol,
		src.URL,
		sortedPairs(src.Params),
		sortedPairs(src.Query),
		strings.Join(src.Symbols, ","),
		r.Interval(w).String(),
	}
	return strings.Join(parts, "|")
}

func sortedPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = k + "=" + m[k]
	}
	return strings.Join(keys, "&")
}
