package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finboard/backend-go/internal/models"
	"finboard/backend-go/internal/storage"
)

// WidgetStore is the ordered, id-unique widget list. Every mutation writes
// the whole list through the blob store; the in-memory list only advances
// once that save succeeds.
type WidgetStore struct {
	mu       sync.RWMutex
	blob     storage.BlobStore
	key      string
	widgets  []models.WidgetConfig
	onChange []func([]models.WidgetConfig)
	hookMu   sync.Mutex
	logger   *zap.Logger
	newID    func() string
}

func NewWidgetStore(ctx context.Context, blob storage.BlobStore, key string, logger *zap.Logger) (*WidgetStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "finboard-dashboard"
	}
	s := &WidgetStore{
		blob:    blob,
		key:     key,
		widgets: []models.WidgetConfig{},
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}
	b, err := blob.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if b == nil {
		return s, nil
	}
	doc, err := ParseDocument(b)
	if err != nil {
		return nil, fmt.Errorf("stored dashboard %s: %w", key, err)
	}
	widgets, err := s.prepare(doc.Widgets)
	if err != nil {
		return nil, fmt.Errorf("stored dashboard %s: %w", key, err)
	}
	s.widgets = widgets
	logger.Info("dashboard loaded", zap.String("key", key), zap.Int("widgets", len(widgets)))
	return s, nil
}

// OnChange registers fn to receive a snapshot after every committed mutation.
func (s *WidgetStore) OnChange(fn func([]models.WidgetConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *WidgetStore) Backend() string { return s.blob.Name() }

func (s *WidgetStore) List() []models.WidgetConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWidgets(s.widgets)
}

func (s *WidgetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.widgets)
}

func (s *WidgetStore) Get(id string) (models.WidgetConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.widgets {
		if w.ID == id {
			return cloneWidget(w), true
		}
	}
	return models.WidgetConfig{}, false
}

// Add appends w, generating an id when it has none.
func (s *WidgetStore) Add(ctx context.Context, w models.WidgetConfig) (models.WidgetConfig, error) {
	var added models.WidgetConfig
	err := s.mutate(ctx, func(list []models.WidgetConfig) ([]models.WidgetConfig, error) {
		if strings.TrimSpace(w.ID) == "" {
			w.ID = s.newID()
		}
		canon, err := normalizeWidget(w)
		if err != nil {
			return nil, err
		}
		for _, existing := range list {
			if existing.ID == canon.ID {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateWidget, canon.ID)
			}
		}
		added = canon
		return append(list, canon), nil
	})
	return cloneWidget(added), err
}

// Remove deletes id. A missing id is a no-op and reports false.
func (s *WidgetStore) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(list []models.WidgetConfig) ([]models.WidgetConfig, error) {
		out := list[:0]
		for _, w := range list {
			if w.ID == id {
				removed = true
				continue
			}
			out = append(out, w)
		}
		if !removed {
			return nil, errNoChange
		}
		return out, nil
	})
	return removed, err
}

// Update merges patch into the widget with id. The widget is revalidated as
// a whole after the merge. An unknown id returns ErrWidgetNotFound and leaves
// the store untouched: nothing is saved and no change hook runs.
func (s *WidgetStore) Update(ctx context.Context, id string, patch models.WidgetPatch) (models.WidgetConfig, error) {
	var updated models.WidgetConfig
	err := s.mutate(ctx, func(list []models.WidgetConfig) ([]models.WidgetConfig, error) {
		for i, w := range list {
			if w.ID != id {
				continue
			}
			canon, err := normalizeWidget(applyPatch(w, patch))
			if err != nil {
				return nil, err
			}
			list[i] = canon
			updated = canon
			return list, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	})
	return cloneWidget(updated), err
}

// ApplyLayout reconciles drag/resize items and saves once, only when at
// least one rectangle moved. It returns the changed ids.
func (s *WidgetStore) ApplyLayout(ctx context.Context, items []models.LayoutItem) ([]string, error) {
	var changed []string
	err := s.mutate(ctx, func(list []models.WidgetConfig) ([]models.WidgetConfig, error) {
		next, ids := Reconcile(list, items)
		if len(ids) == 0 {
			return nil, errNoChange
		}
		for _, id := range ids {
			for _, w := range next {
				if w.ID == id {
					if err := validatePosition(w.Position); err != nil {
						return nil, err
					}
				}
			}
		}
		changed = ids
		return next, nil
	})
	if changed == nil {
		changed = []string{}
	}
	return changed, err
}

func (s *WidgetStore) Export() models.DashboardDocument {
	return models.DashboardDocument{Version: models.ExportVersion, Widgets: s.List()}
}

// Import replaces the whole list with doc. Nothing changes unless every
// widget validates and ids are unique.
func (s *WidgetStore) Import(ctx context.Context, doc models.DashboardDocument) error {
	if doc.Version > models.ExportVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return s.mutate(ctx, func([]models.WidgetConfig) ([]models.WidgetConfig, error) {
		return s.prepare(doc.Widgets)
	})
}

func (s *WidgetStore) prepare(in []models.WidgetConfig) ([]models.WidgetConfig, error) {
	out := make([]models.WidgetConfig, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, w := range in {
		if strings.TrimSpace(w.ID) == "" {
			w.ID = s.newID()
		}
		canon, err := normalizeWidget(w)
		if err != nil {
			return nil, err
		}
		if seen[canon.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWidget, canon.ID)
		}
		seen[canon.ID] = true
		out = append(out, canon)
	}
	return out, nil
}

var errNoChange = errors.New("no change")

func (s *WidgetStore) mutate(ctx context.Context, fn func([]models.WidgetConfig) ([]models.WidgetConfig, error)) error {
	s.mu.Lock()
	next, err := fn(cloneWidgets(s.widgets))
	if errors.Is(err, errNoChange) {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	b, err := json.Marshal(models.DashboardDocument{Version: models.ExportVersion, Widgets: next})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode dashboard: %w", err)
	}
	if err := s.blob.Save(ctx, s.key, b); err != nil {
		s.mu.Unlock()
		s.logger.Error("dashboard save failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("save dashboard: %w", err)
	}
	s.widgets = next
	snapshot := cloneWidgets(next)
	hooks := append([]func([]models.WidgetConfig){}, s.onChange...)
	// Taking hookMu before releasing mu keeps hook calls in commit order.
	s.hookMu.Lock()
	s.mu.Unlock()
	defer s.hookMu.Unlock()

	for _, h := range hooks {
		h(snapshot)
	}
	return nil
}

// ParseDocument decodes an exported dashboard. A missing version is read as
// the current one; newer versions are rejected.
func ParseDocument(b []byte) (models.DashboardDocument, error) {
	var doc struct {
		Version *int                   `json:"version"`
		Widgets *[]models.WidgetConfig `json:"widgets"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return models.DashboardDocument{}, fmt.Errorf("%w: %v", ErrInvalidWidget, err)
	}
	if doc.Widgets == nil {
		return models.DashboardDocument{}, &ValidationError{Field: "widgets", Reason: "missing"}
	}
	if doc.Version != nil && (*doc.Version < 0 || *doc.Version > models.ExportVersion) {
		return models.DashboardDocument{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *doc.Version)
	}
	return models.DashboardDocument{Version: models.ExportVersion, Widgets: *doc.Widgets}, nil
}

func applyPatch(w models.WidgetConfig, p models.WidgetPatch) models.WidgetConfig {
	if p.Kind != nil {
		w.Kind = *p.Kind
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Type != nil {
		w.Type = *p.Type
	}
	if p.Source != nil {
		w.Source = *p.Source
	}
	if p.RefreshIntervalSecs != nil {
		w.RefreshIntervalSecs.SetValid(int64(*p.RefreshIntervalSecs))
	}
	if p.Fields != nil {
		w.Fields = append([]string(nil), (*p.Fields)...)
	}
	if p.Position != nil {
		w.Position = *p.Position
	}
	return w
}

// normalizeWidget validates w and returns it with a canonical provider name
// and operation, an upper-cased symbol, and trimmed strings.
func normalizeWidget(w models.WidgetConfig) (models.WidgetConfig, error) {
	w.ID = strings.TrimSpace(w.ID)
	w.Title = strings.TrimSpace(w.Title)
	if !w.Kind.Valid() {
		return w, &ValidationError{Field: "kind", Reason: fmt.Sprintf("%q is not chart, table or card", w.Kind)}
	}
	if w.RefreshIntervalSecs.Valid && w.RefreshIntervalSecs.Int64 < 0 {
		return w, &ValidationError{Field: "refreshIntervalSecs", Reason: "must not be negative"}
	}
	if err := validatePosition(w.Position); err != nil {
		return w, err
	}

	src := w.Source
	src.Symbol = strings.ToUpper(strings.TrimSpace(src.Symbol))
	if src.IsCustom() {
		src.Provider = models.ProviderCustom
		if strings.TrimSpace(src.URL) == "" {
			return w, &ValidationError{Field: "source.url", Reason: "required for custom sources"}
		}
	} else {
		p, ok := ParseProvider(string(src.Provider))
		if !ok {
			return w, &ValidationError{Field: "source.provider", Reason: fmt.Sprintf("unknown provider %q", src.Provider)}
		}
		spec, err := LookupOperation(p, src.Operation)
		if err != nil {
			return w, &ValidationError{Field: "source.operation", Reason: err.Error()}
		}
		src.Provider = p
		src.Operation = spec.Name
	}
	if len(src.Symbols) > 0 {
		syms := make([]string, 0, len(src.Symbols))
		for _, sym := range src.Symbols {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				syms = append(syms, sym)
			}
		}
		src.Symbols = syms
	}
	w.Source = src
	return w, nil
}

func validatePosition(p models.Position) error {
	switch {
	case p.X < 0 || p.Y < 0:
		return &ValidationError{Field: "position", Reason: "x and y must not be negative"}
	case p.W <= 0 || p.H <= 0:
		return &ValidationError{Field: "position", Reason: "w and h must be positive"}
	case p.X+p.W > GridColumns:
		return &ValidationError{Field: "position", Reason: fmt.Sprintf("exceeds %d grid columns", GridColumns)}
	case p.MinW > 0 && p.MaxW > 0 && p.MinW > p.MaxW:
		return &ValidationError{Field: "position", Reason: "minW greater than maxW"}
	case p.MinH > 0 && p.MaxH > 0 && p.MinH > p.MaxH:
		return &ValidationError{Field: "position", Reason: "minH greater than maxH"}
	}
	return nil
}

func cloneWidgets(in []models.WidgetConfig) []models.WidgetConfig {
	out := make([]models.WidgetConfig, len(in))
	for i, w := range in {
		out[i] = cloneWidget(w)
	}
	return out
}

func cloneWidget(w models.WidgetConfig) models.WidgetConfig {
	if w.Fields != nil {
		w.Fields = append([]string(nil), w.Fields...)
	}
	if w.Source.Symbols != nil {
		w.Source.Symbols = append([]string(nil), w.Source.Symbols...)
	}
	w.Source.Params = cloneStringMap(w.Source.Params)
	w.Source.Query = cloneStringMap(w.Source.Query)
	return w
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
