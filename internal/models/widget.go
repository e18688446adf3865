package models

import "github.com/guregu/null/v6"

type WidgetKind string

const (
	KindChart WidgetKind = "chart"
	KindTable WidgetKind = "table"
	KindCard  WidgetKind = "card"
)

func (k WidgetKind) Valid() bool {
	return k == KindChart || k == KindTable || k == KindCard
}

// Position is a rectangle on the dashboard grid. Zero bounds mean unset.
type Position struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	W    int `json:"w"`
	H    int `json:"h"`
	MinW int `json:"minW,omitempty"`
	MaxW int `json:"maxW,omitempty"`
	MinH int `json:"minH,omitempty"`
	MaxH int `json:"maxH,omitempty"`
}

// DataSource binds a widget either to a raw URL or to a vendor operation.
type DataSource struct {
	Provider  Provider          `json:"provider,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Symbol    string            `json:"symbol,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	URL       string            `json:"url,omitempty"`
	Query     map[string]string `json:"query,omitempty"`
	Symbols   []string          `json:"symbols,omitempty"`
}

func (d DataSource) IsCustom() bool {
	return d.URL != "" || d.Provider == ProviderCustom
}

type WidgetConfig struct {
	ID                  string     `json:"id"`
	Kind                WidgetKind `json:"kind"`
	Title               string     `json:"title"`
	Type                string     `json:"type,omitempty"`
	Source              DataSource `json:"source"`
	RefreshIntervalSecs null.Int   `json:"refreshIntervalSecs,omitzero"`
	Fields              []string   `json:"fields,omitempty"`
	Position            Position   `json:"position"`
}

// WidgetPatch carries the fields an edit changes; nil means untouched.
type WidgetPatch struct {
	Kind                *WidgetKind `json:"kind,omitempty"`
	Title               *string     `json:"title,omitempty"`
	Type                *string     `json:"type,omitempty"`
	Source              *DataSource `json:"source,omitempty"`
	RefreshIntervalSecs *int        `json:"refreshIntervalSecs,omitempty"`
	Fields              *[]string   `json:"fields,omitempty"`
	Position            *Position   `json:"position,omitempty"`
}

// LayoutItem is one grid item reported by a drag/resize event.
type LayoutItem struct {
	I string `json:"i"`
	X int    `json:"x"`
	Y int    `json:"y"`
	W int    `json:"w"`
	H int    `json:"h"`
}

const ExportVersion = 1

type DashboardDocument struct {
	Version int            `json:"version,omitempty"`
	Widgets []WidgetConfig `json:"widgets"`
}

type RenderStatus string

const (
	StatusLoading RenderStatus = "loading"
	StatusError   RenderStatus = "error"
	StatusReady   RenderStatus = "ready"
)

type RenderState struct {
	WidgetID   string       `json:"widgetId"`
	Status     RenderStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	Retryable  bool         `json:"retryable,omitempty"`
	Data       any          `json:"data,omitempty"`
	UpdatedISO string       `json:"updatedISO"`
}

type TablePage struct {
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
	Total      int              `json:"total"`
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
}

type WidgetDataResponse struct {
	Widget WidgetConfig `json:"widget"`
	State  RenderState  `json:"state"`
	Table  *TablePage   `json:"table,omitempty"`
}

type HealthResponse struct {
	Ok        bool            `json:"ok"`
	TsISO     string          `json:"tsISO"`
	Service   string          `json:"service"`
	Version   string          `json:"version,omitempty"`
	Store     string          `json:"store"`
	Widgets   int             `json:"widgets"`
	Env       map[string]bool `json:"env"`
	Providers map[string]bool `json:"providers"`
}
