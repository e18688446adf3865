package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"finboard/backend-go/internal/models"
)

type finnhubQuote struct {
	C  flexNumber `json:"c"`
	D  flexNumber `json:"d"`
	DP flexNumber `json:"dp"`
	H  flexNumber `json:"h"`
	L  flexNumber `json:"l"`
	O  flexNumber `json:"o"`
	PC flexNumber `json:"pc"`
}

// NormalizeFinnhubQuote treats an all-zero quote as an unknown symbol; Finnhub
// answers those with 200 and zeroes rather than an error.
func NormalizeFinnhubQuote(raw []byte, symbol string) (models.Quote, error) {
	var q finnhubQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		return models.Quote{}, shapeErr(err)
	}
	if !q.C.set || (q.C.val == 0 && q.PC.val == 0) {
		return models.Quote{}, ErrNoData
	}
	change := q.D.val
	if !q.D.set {
		change = q.C.val - q.PC.val
	}
	pct := q.DP.val
	if !q.DP.set && q.PC.val != 0 {
		pct = change / q.PC.val * 100
	}
	return models.Quote{
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		Price:         q.C.val,
		Change:        change,
		ChangePercent: pct,
		Open:          q.O.orNull(),
		High:          q.H.orNull(),
		Low:           q.L.orNull(),
		PreviousClose: q.PC.orNull(),
	}, nil
}

func NormalizeFinnhubProfile(raw []byte) (models.Profile, error) {
	var p struct {
		Ticker    string     `json:"ticker"`
		Name      string     `json:"name"`
		Exchange  string     `json:"exchange"`
		Industry  string     `json:"finnhubIndustry"`
		Country   string     `json:"country"`
		Currency  string     `json:"currency"`
		MarketCap flexNumber `json:"marketCapitalization"`
		Logo      string     `json:"logo"`
		URL       string     `json:"weburl"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Profile{}, shapeErr(err)
	}
	if p.Ticker == "" && p.Name == "" {
		return models.Profile{}, ErrNoData
	}
	return models.Profile{
		Ticker:    p.Ticker,
		Name:      p.Name,
		Exchange:  p.Exchange,
		Industry:  p.Industry,
		Country:   p.Country,
		Currency:  p.Currency,
		MarketCap: p.MarketCap.orNull(),
		Logo:      p.Logo,
		URL:       p.URL,
	}, nil
}

// NormalizeFinnhubCandles zips the parallel o/h/l/c/v/t arrays. Close and
// time are mandatory; the other arrays may be absent but never ragged.
func NormalizeFinnhubCandles(raw []byte, max int) ([]models.TimeSeriesPoint, error) {
	var c struct {
		S string    `json:"s"`
		T []int64   `json:"t"`
		O []float64 `json:"o"`
		H []float64 `json:"h"`
		L []float64 `json:"l"`
		C []float64 `json:"c"`
		V []float64 `json:"v"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, shapeErr(err)
	}
	if c.S != "ok" || len(c.T) == 0 {
		return nil, ErrNoData
	}
	n := len(c.T)
	if len(c.C) != n {
		return nil, shapeErr(fmt.Errorf("candle: %d closes for %d timestamps", len(c.C), n))
	}
	for name, arr := range map[string][]float64{"o": c.O, "h": c.H, "l": c.L, "v": c.V} {
		if arr != nil && len(arr) != n {
			return nil, shapeErr(fmt.Errorf("candle: %s has %d values for %d timestamps", name, len(arr), n))
		}
	}

	at := func(arr []float64, i int) null.Float {
		if arr == nil {
			return null.Float{}
		}
		return null.FloatFrom(arr[i])
	}
	points := make([]models.TimeSeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		open := c.C[i]
		if c.O != nil {
			open = c.O[i]
		}
		points = append(points, models.TimeSeriesPoint{
			Time:   time.Unix(c.T[i], 0).UTC().Format(time.RFC3339),
			Open:   open,
			Close:  c.C[i],
			High:   at(c.H, i),
			Low:    at(c.L, i),
			Volume: at(c.V, i),
		})
	}
	return recentAscending(points, max), nil
}

func NormalizeFinnhubGainers(raw []byte) ([]models.Gainer, error) {
	var payload struct {
		Data *[]struct {
			Symbol string     `json:"symbol"`
			Price  flexNumber `json:"c"`
			DP     flexNumber `json:"dp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, shapeErr(err)
	}
	if payload.Data == nil {
		return nil, ErrNoData
	}
	out := make([]models.Gainer, 0, len(*payload.Data))
	for _, g := range *payload.Data {
		out = append(out, models.Gainer{
			Symbol:        g.Symbol,
			Price:         g.Price.val,
			ChangePercent: g.DP.val,
		})
	}
	return out, nil
}

func NormalizeFinnhubMetrics(raw []byte, symbol string) (models.Metrics, error) {
	var payload struct {
		Symbol string                `json:"symbol"`
		Metric map[string]flexNumber `json:"metric"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.Metrics{}, shapeErr(err)
	}
	if len(payload.Metric) == 0 {
		return models.Metrics{}, ErrNoData
	}
	pick := func(keys ...string) null.Float {
		for _, k := range keys {
			if v, ok := payload.Metric[k]; ok && v.set {
				return null.FloatFrom(v.val)
			}
		}
		return null.Float{}
	}
	sym := payload.Symbol
	if sym == "" {
		sym = strings.ToUpper(strings.TrimSpace(symbol))
	}
	return models.Metrics{
		Symbol:    sym,
		PETTM:     pick("peTTM", "peBasicExclExtraTTM", "peNormalizedAnnual"),
		EPSTTM:    pick("epsTTM", "epsBasicExclExtraItemsTTM", "epsNormalizedAnnual"),
		High52W:   pick("52WeekHigh"),
		Low52W:    pick("52WeekLow"),
		Volume10D: pick("10DayAverageTradingVolume"),
	}, nil
}

func NormalizeFinnhubNews(raw []byte) ([]models.NewsItem, error) {
	var items []struct {
		Headline string `json:"headline"`
		Datetime int64  `json:"datetime"`
		Source   string `json:"source"`
		Summary  string `json:"summary"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, shapeErr(err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.NewsItem{
			Headline: it.Headline,
			Datetime: time.Unix(it.Datetime, 0).UTC().Format(time.RFC3339),
			Source:   it.Source,
			Summary:  it.Summary,
			URL:      it.URL,
		})
	}
	return out, nil
}
