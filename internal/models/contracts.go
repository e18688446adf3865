package models

import "github.com/guregu/null/v6"

type Provider string

const (
	ProviderAlphaVantage Provider = "alphavantage"
	ProviderFinnhub      Provider = "finnhub"
	ProviderCustom       Provider = "custom"
)

// Operation is a logical request type, independent of the vendor serving it.
type Operation string

const (
	OpQuote          Operation = "quote"
	OpOverview       Operation = "overview"
	OpDailySeries    Operation = "daily-series"
	OpIntradaySeries Operation = "intraday-series"
	OpSymbolSearch   Operation = "symbol-search"
	OpCandle         Operation = "candle"
	OpGainers        Operation = "gainers"
	OpMetrics        Operation = "metrics"
	OpNews           Operation = "news"
	OpProfile        Operation = "profile"
)

type Quote struct {
	Symbol        string     `json:"symbol"`
	Price         float64    `json:"price"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"changePercent"`
	Open          null.Float `json:"open,omitzero"`
	High          null.Float `json:"high,omitzero"`
	Low           null.Float `json:"low,omitzero"`
	PreviousClose null.Float `json:"previousClose,omitzero"`
}

// TimeSeriesPoint is one bar of a chronological ascending series.
type TimeSeriesPoint struct {
	Time   string     `json:"time"`
	Open   float64    `json:"open"`
	Close  float64    `json:"close"`
	High   null.Float `json:"high,omitzero"`
	Low    null.Float `json:"low,omitzero"`
	Volume null.Float `json:"volume,omitzero"`
}

type Overview struct {
	Symbol    string     `json:"symbol"`
	Name      string     `json:"name"`
	MarketCap null.Float `json:"marketCap,omitzero"`
	PERatio   null.Float `json:"peRatio,omitzero"`
	Volume    null.Float `json:"volume,omitzero"`
}

type SearchMatch struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	ChangePercent float64 `json:"changePercent"`
}

type Gainer struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
}

type Profile struct {
	Ticker    string     `json:"ticker"`
	Name      string     `json:"name"`
	Exchange  string     `json:"exchange,omitempty"`
	Industry  string     `json:"industry,omitempty"`
	Country   string     `json:"country,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	MarketCap null.Float `json:"marketCap,omitzero"`
	Logo      string     `json:"logo,omitempty"`
	URL       string     `json:"url,omitempty"`
}

type Metrics struct {
	Symbol    string     `json:"symbol"`
	PETTM     null.Float `json:"peTTM,omitzero"`
	EPSTTM    null.Float `json:"epsTTM,omitzero"`
	High52W   null.Float `json:"high52Week,omitzero"`
	Low52W    null.Float `json:"low52Week,omitzero"`
	Volume10D null.Float `json:"volume,omitzero"`
}

type NewsItem struct {
	Headline string `json:"headline"`
	Datetime string `json:"datetime"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}
