package services

import (
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/backend-go/internal/models"
)

func TestParsePercent(t *testing.T) {
	cases := map[string]float64{
		"1.23%":   1.23,
		"-2.50%":  -2.5,
		" 0.5% ":  0.5,
		"4":       4,
		"1,234.5": 1234.5,
	}
	for in, want := range cases {
		got, err := parsePercent(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	_, err := parsePercent("n/a%")
	assert.Error(t, err)
	_, err = parsePercent("")
	assert.Error(t, err)
}

func TestOptionalNumber(t *testing.T) {
	assert.False(t, optionalNumber("None").Valid)
	assert.False(t, optionalNumber("-").Valid)
	v := optionalNumber("3.1e12")
	require.True(t, v.Valid)
	assert.InDelta(t, 3.1e12, v.Float64, 1)
}

func TestNormalizeAlphaQuote(t *testing.T) {
	raw := []byte(`{"Global Quote":{
		"01. symbol":"AAPL","02. open":"190.0000","03. high":"191.0000","04. low":"187.5000",
		"05. price":"189.1200","06. volume":"51234567","07. latest trading day":"2024-05-01",
		"08. previous close":"191.6200","09. change":"-2.5000","10. change percent":"-2.50%"}}`)

	q, err := NormalizeAlphaQuote(raw)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 189.12, q.Price, 1e-9)
	assert.InDelta(t, -2.5, q.Change, 1e-9)
	assert.InDelta(t, -2.5, q.ChangePercent, 1e-9)
	require.True(t, q.PreviousClose.Valid)
	assert.InDelta(t, 191.62, q.PreviousClose.Float64, 1e-9)
}

func TestNormalizeAlphaQuoteNoData(t *testing.T) {
	for _, body := range []string{`{"Global Quote":{}}`, `{}`} {
		_, err := NormalizeAlphaQuote([]byte(body))
		assert.ErrorIs(t, err, ErrNoData, body)
	}
}

func TestNormalizeAlphaQuoteBadPrice(t *testing.T) {
	_, err := NormalizeAlphaQuote([]byte(`{"Global Quote":{"01. symbol":"AAPL","05. price":"abc"}}`))
	assert.ErrorIs(t, err, ErrDataShape)

	_, err = NormalizeAlphaQuote([]byte(`not json`))
	assert.ErrorIs(t, err, ErrDataShape)
}

func dailySeriesBody(t *testing.T, days int) []byte {
	t.Helper()
	series := map[string]map[string]string{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		series[d] = map[string]string{
			"1. open":   fmt.Sprintf("%d.00", 100+i),
			"2. high":   fmt.Sprintf("%d.50", 100+i),
			"3. low":    fmt.Sprintf("%d.25", 99+i),
			"4. close":  fmt.Sprintf("%d.10", 100+i),
			"5. volume": "1000",
		}
	}
	b, err := json.Marshal(map[string]any{
		"Meta Data":           map[string]string{"2. Symbol": "IBM"},
		"Time Series (Daily)": series,
	})
	require.NoError(t, err)
	return b
}

func TestNormalizeAlphaDailySeriesKeepsTenMostRecentAscending(t *testing.T) {
	points, err := NormalizeAlphaDailySeries(dailySeriesBody(t, 12), 10)
	require.NoError(t, err)
	require.Len(t, points, 10)
	assert.Equal(t, "2024-01-03", points[0].Time)
	assert.Equal(t, "2024-01-12", points[9].Time)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].Time, points[i].Time)
	}
	assert.InDelta(t, 111.10, points[9].Close, 1e-9)
	assert.InDelta(t, 111.0, points[9].Open, 1e-9)
}

func TestNormalizeAlphaDailySeriesShort(t *testing.T) {
	points, err := NormalizeAlphaDailySeries(dailySeriesBody(t, 3), 10)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestNormalizeAlphaDailySeriesNoData(t *testing.T) {
	_, err := NormalizeAlphaDailySeries([]byte(`{"Meta Data":{}}`), 10)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = NormalizeAlphaDailySeries([]byte(`{"Time Series (Daily)":{}}`), 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeAlphaDailySeriesSkipsUnparsableBars(t *testing.T) {
	body := []byte(`{"Time Series (Daily)":{
		"2024-01-02":{"1. open":"10","4. close":"11"},
		"2024-01-03":{"1. open":"bad","4. close":"12"}}}`)
	points, err := NormalizeAlphaDailySeries(body, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-01-02", points[0].Time)

	_, err = NormalizeAlphaDailySeries([]byte(`{"Time Series (Daily)":{"2024-01-03":{"1. open":"bad"}}}`), 10)
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestNormalizeAlphaIntradayUsesEchoedInterval(t *testing.T) {
	body := []byte(`{
		"Meta Data":{"1. Information":"Intraday (5min)","2. Symbol":"IBM","4. Interval":"5min"},
		"Time Series (5min)":{
			"2024-01-02 15:55:00":{"1. open":"160.1","2. high":"160.5","3. low":"160.0","4. close":"160.4","5. volume":"900"},
			"2024-01-02 15:50:00":{"1. open":"159.9","2. high":"160.2","3. low":"159.8","4. close":"160.1","5. volume":"800"}}}`)

	// The requested interval disagrees; the echoed one wins.
	points, err := NormalizeAlphaIntradaySeries(body, "1min", 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-02T15:50:00", points[0].Time)
	assert.Equal(t, "2024-01-02T15:55:00", points[1].Time)
}

func TestNormalizeAlphaIntradayFallsBackToRequestedInterval(t *testing.T) {
	body := []byte(`{"Time Series (15min)":{"2024-01-02 15:45:00":{"1. open":"1","4. close":"2"}}}`)
	points, err := NormalizeAlphaIntradaySeries(body, "15min", 10)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, err = NormalizeAlphaIntradaySeries(body, "", 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeAlphaOverview(t *testing.T) {
	o, err := NormalizeAlphaOverview([]byte(`{"Symbol":"IBM","Name":"International Business Machines",
		"MarketCapitalization":"None","PERatio":"22.5","Volume":"123"}`))
	require.NoError(t, err)
	assert.Equal(t, "IBM", o.Symbol)
	assert.False(t, o.MarketCap.Valid)
	assert.InDelta(t, 22.5, o.PERatio.Float64, 1e-9)

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "marketCap")

	_, err = NormalizeAlphaOverview([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeAlphaSearch(t *testing.T) {
	matches, err := NormalizeAlphaSearch([]byte(`{"bestMatches":[
		{"1. symbol":"TSCO.LON","2. name":"Tesco PLC","9. changePercent":"1.23%"},
		{"1. symbol":"TSCDF","2. name":"Tesco plc"}]}`))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 1.23, matches[0].ChangePercent, 1e-9)
	assert.Equal(t, 0.0, matches[1].ChangePercent)

	empty, err := NormalizeAlphaSearch([]byte(`{"bestMatches":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = NormalizeAlphaSearch([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeFinnhubQuote(t *testing.T) {
	q, err := NormalizeFinnhubQuote([]byte(`{"c":110,"h":111,"l":108,"o":109,"pc":100,"t":1700000000}`), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 10.0, q.Change, 1e-9)
	assert.InDelta(t, 10.0, q.ChangePercent, 1e-9)

	q, err = NormalizeFinnhubQuote([]byte(`{"c":110,"d":-1.5,"dp":-1.2,"pc":111.5}`), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, -1.5, q.Change, 1e-9)
	assert.InDelta(t, -1.2, q.ChangePercent, 1e-9)
}

func TestNormalizeFinnhubQuoteUnknownSymbol(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`,
	} {
		_, err := NormalizeFinnhubQuote([]byte(body), "ZZZZ")
		assert.ErrorIs(t, err, ErrNoData, body)
	}
}

func TestNormalizeFinnhubProfile(t *testing.T) {
	p, err := NormalizeFinnhubProfile([]byte(`{"ticker":"AAPL","name":"Apple Inc","exchange":"NASDAQ",
		"finnhubIndustry":"Technology","marketCapitalization":2800000,"weburl":"https://apple.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "Technology", p.Industry)
	assert.InDelta(t, 2800000.0, p.MarketCap.Float64, 1e-9)

	_, err = NormalizeFinnhubProfile([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeFinnhubCandles(t *testing.T) {
	var ts []int64
	var closes []float64
	for i := 0; i < 12; i++ {
		ts = append(ts, 1700000000+int64(i)*86400)
		closes = append(closes, float64(100+i))
	}
	body, err := json.Marshal(map[string]any{"s": "ok", "t": ts, "c": closes, "o": closes})
	require.NoError(t, err)

	points, err := NormalizeFinnhubCandles(body, 10)
	require.NoError(t, err)
	require.Len(t, points, 10)
	assert.InDelta(t, 102.0, points[0].Close, 1e-9)
	assert.InDelta(t, 111.0, points[9].Close, 1e-9)
	assert.Equal(t, time.Unix(ts[11], 0).UTC().Format(time.RFC3339), points[9].Time)
	assert.False(t, points[0].Volume.Valid)
}

func TestNormalizeFinnhubCandlesFailures(t *testing.T) {
	_, err := NormalizeFinnhubCandles([]byte(`{"s":"no_data"}`), 10)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = NormalizeFinnhubCandles([]byte(`{"s":"ok","t":[1,2],"c":[1]}`), 10)
	assert.ErrorIs(t, err, ErrDataShape)

	_, err = NormalizeFinnhubCandles([]byte(`{"s":"ok","t":[1,2],"c":[1,2],"v":[5]}`), 10)
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestNormalizeFinnhubGainers(t *testing.T) {
	g, err := NormalizeFinnhubGainers([]byte(`{"data":[{"symbol":"X","c":1.5,"dp":"3.2%"},{"symbol":"Y","c":2}]}`))
	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.InDelta(t, 3.2, g[0].ChangePercent, 1e-9)
	assert.Equal(t, 0.0, g[1].ChangePercent)

	_, err = NormalizeFinnhubGainers([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeFinnhubMetrics(t *testing.T) {
	m, err := NormalizeFinnhubMetrics([]byte(`{"symbol":"AAPL","metric":{"peBasicExclExtraTTM":29.1,"52WeekHigh":199.6,"52WeekLow":null}}`), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 29.1, m.PETTM.Float64, 1e-9)
	assert.InDelta(t, 199.6, m.High52W.Float64, 1e-9)
	assert.False(t, m.Low52W.Valid)

	_, err = NormalizeFinnhubMetrics([]byte(`{"metric":{}}`), "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeFinnhubNews(t *testing.T) {
	items, err := NormalizeFinnhubNews([]byte(`[{"headline":"Apple ships","datetime":1700000000,"source":"Reuters","summary":"s","url":"https://x"}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2023-11-14T22:13:20Z", items[0].Datetime)

	_, err = NormalizeFinnhubNews([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNoData)

	_, err = NormalizeFinnhubNews([]byte(`{"error":"x"}`))
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestNormalizeDispatch(t *testing.T) {
	spec, err := LookupOperation(models.ProviderFinnhub, "quote")
	require.NoError(t, err)
	got, err := Normalize(spec, []byte(`{"c":5,"pc":4}`), url.Values{"symbol": {"IBM"}}, 10)
	require.NoError(t, err)
	q, ok := got.(models.Quote)
	require.True(t, ok)
	assert.Equal(t, "IBM", q.Symbol)
}
