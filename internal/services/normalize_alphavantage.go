package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"finboard/backend-go/internal/models"
)

type alphaGlobalQuote struct {
	GlobalQuote map[string]string `json:"Global Quote"`
}

func NormalizeAlphaQuote(raw []byte) (models.Quote, error) {
	var payload alphaGlobalQuote
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.Quote{}, shapeErr(err)
	}
	gq := payload.GlobalQuote
	if len(gq) == 0 {
		return models.Quote{}, ErrNoData
	}
	price, err := parseNumber(gq["05. price"])
	if err != nil {
		return models.Quote{}, shapeErr(fmt.Errorf("05. price: %v", err))
	}
	out := models.Quote{
		Symbol:        gq["01. symbol"],
		Price:         price,
		Open:          optionalNumber(gq["02. open"]),
		High:          optionalNumber(gq["03. high"]),
		Low:           optionalNumber(gq["04. low"]),
		PreviousClose: optionalNumber(gq["08. previous close"]),
	}
	if v, ok := gq["09. change"]; ok {
		if out.Change, err = parseNumber(v); err != nil {
			return models.Quote{}, shapeErr(fmt.Errorf("09. change: %v", err))
		}
	}
	if v, ok := gq["10. change percent"]; ok {
		if out.ChangePercent, err = parsePercent(v); err != nil {
			return models.Quote{}, shapeErr(fmt.Errorf("10. change percent: %v", err))
		}
	}
	return out, nil
}

func NormalizeAlphaDailySeries(raw []byte, max int) ([]models.TimeSeriesPoint, error) {
	return alphaSeries(raw, "Time Series (Daily)", max)
}

// NormalizeAlphaIntradaySeries reads the interval echoed in "Meta Data" to
// find the series key, e.g. "Time Series (5min)". The requested interval is
// only a fallback for bodies without metadata.
func NormalizeAlphaIntradaySeries(raw []byte, interval string, max int) ([]models.TimeSeriesPoint, error) {
	var payload struct {
		Meta map[string]string `json:"Meta Data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, shapeErr(err)
	}
	echoed := ""
	for k, v := range payload.Meta {
		if strings.HasSuffix(k, "Interval") {
			echoed = strings.TrimSpace(v)
			break
		}
	}
	if echoed == "" {
		echoed = strings.TrimSpace(interval)
	}
	if echoed == "" {
		return nil, ErrNoData
	}
	return alphaSeries(raw, "Time Series ("+echoed+")", max)
}

func alphaSeries(raw []byte, key string, max int) ([]models.TimeSeriesPoint, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, shapeErr(err)
	}
	seriesRaw, ok := top[key]
	if !ok {
		return nil, ErrNoData
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(seriesRaw, &series); err != nil {
		return nil, shapeErr(err)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	stamps := make([]string, 0, len(series))
	for ts := range series {
		stamps = append(stamps, ts)
	}
	// Alpha Vantage timestamps sort lexicographically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(stamps)))

	points := make([]models.TimeSeriesPoint, 0, max)
	for _, ts := range stamps {
		bar := series[ts]
		open, err := parseNumber(bar["1. open"])
		if err != nil {
			continue
		}
		closePx, err := parseNumber(bar["4. close"])
		if err != nil {
			continue
		}
		points = append(points, models.TimeSeriesPoint{
			Time:   isoStamp(ts),
			Open:   open,
			Close:  closePx,
			High:   optionalNumber(bar["2. high"]),
			Low:    optionalNumber(bar["3. low"]),
			Volume: optionalNumber(bar["5. volume"]),
		})
		if max > 0 && len(points) == max {
			break
		}
	}
	if len(points) == 0 {
		return nil, shapeErr(fmt.Errorf("%s: no parseable bars", key))
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func isoStamp(ts string) string {
	if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
		return t.Format("2006-01-02T15:04:05")
	}
	return ts
}

func NormalizeAlphaOverview(raw []byte) (models.Overview, error) {
	var o map[string]any
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Overview{}, shapeErr(err)
	}
	symbol := stringField(o, "Symbol")
	if len(o) == 0 || symbol == "" {
		return models.Overview{}, ErrNoData
	}
	return models.Overview{
		Symbol:    symbol,
		Name:      stringField(o, "Name"),
		MarketCap: optionalNumber(stringField(o, "MarketCapitalization")),
		PERatio:   optionalNumber(stringField(o, "PERatio")),
		Volume:    optionalNumber(stringField(o, "Volume")),
	}, nil
}

// NormalizeAlphaSearch returns an empty slice for a search with no matches;
// a body without "bestMatches" is no data.
func NormalizeAlphaSearch(raw []byte) ([]models.SearchMatch, error) {
	var payload struct {
		BestMatches *[]map[string]string `json:"bestMatches"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, shapeErr(err)
	}
	if payload.BestMatches == nil {
		return nil, ErrNoData
	}
	out := make([]models.SearchMatch, 0, len(*payload.BestMatches))
	for _, m := range *payload.BestMatches {
		pct := m["9. changePercent"]
		if strings.TrimSpace(pct) == "" {
			pct = "0%"
		}
		v, err := parsePercent(pct)
		if err != nil {
			v = 0
		}
		out = append(out, models.SearchMatch{
			Symbol:        m["1. symbol"],
			Name:          m["2. name"],
			ChangePercent: v,
		})
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	}
	return ""
}
