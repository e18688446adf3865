package services

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"finboard/backend-go/internal/models"
)

type normalizeFunc func(raw []byte, params url.Values, maxPoints int) (any, error)

var normalizers = map[models.Provider]map[models.Operation]normalizeFunc{
	models.ProviderAlphaVantage: {
		models.OpQuote: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeAlphaQuote(raw)
		},
		models.OpOverview: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeAlphaOverview(raw)
		},
		models.OpDailySeries: func(raw []byte, _ url.Values, max int) (any, error) {
			return NormalizeAlphaDailySeries(raw, max)
		},
		models.OpIntradaySeries: func(raw []byte, p url.Values, max int) (any, error) {
			return NormalizeAlphaIntradaySeries(raw, p.Get("interval"), max)
		},
		models.OpSymbolSearch: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeAlphaSearch(raw)
		},
	},
	models.ProviderFinnhub: {
		models.OpQuote: func(raw []byte, p url.Values, _ int) (any, error) {
			return NormalizeFinnhubQuote(raw, p.Get("symbol"))
		},
		models.OpProfile: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeFinnhubProfile(raw)
		},
		models.OpCandle: func(raw []byte, _ url.Values, max int) (any, error) {
			return NormalizeFinnhubCandles(raw, max)
		},
		models.OpGainers: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeFinnhubGainers(raw)
		},
		models.OpMetrics: func(raw []byte, p url.Values, _ int) (any, error) {
			return NormalizeFinnhubMetrics(raw, p.Get("symbol"))
		},
		models.OpNews: func(raw []byte, _ url.Values, _ int) (any, error) {
			return NormalizeFinnhubNews(raw)
		},
	},
}

// Normalize maps one vendor body to its canonical shape. The returned error
// is ErrNoData or ErrDataShape (possibly wrapped).
func Normalize(spec OperationSpec, raw []byte, params url.Values, maxPoints int) (any, error) {
	byOp, ok := normalizers[spec.Provider]
	if !ok {
		return nil, &UnsupportedError{Provider: spec.Provider, Name: spec.Name}
	}
	fn, ok := byOp[spec.Operation]
	if !ok {
		return nil, &UnsupportedError{Provider: spec.Provider, Name: spec.Name}
	}
	return fn(raw, params, maxPoints)
}

func shapeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrDataShape, err)
}

// parseNumber reads vendor numeric strings ("189.1200", "1,234", "3.1e12").
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// parsePercent strips one trailing "%" before parsing: "-2.50%" -> -2.5.
func parsePercent(s string) (float64, error) {
	return parseNumber(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// optionalNumber turns placeholders like "None" or "-" into an absent value.
func optionalNumber(s string) null.Float {
	f, err := parseNumber(s)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// flexNumber accepts a JSON number, a numeric or percent string, or null.
type flexNumber struct {
	val float64
	set bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := parsePercent(str)
		if err != nil {
			return nil
		}
		f.val, f.set = v, true
		return nil
	}
	v, err := parseNumber(s)
	if err != nil {
		return err
	}
	f.val, f.set = v, true
	return nil
}

func (f flexNumber) orNull() null.Float {
	if !f.set {
		return null.Float{}
	}
	return null.FloatFrom(f.val)
}

func recentAscending(points []models.TimeSeriesPoint, max int) []models.TimeSeriesPoint {
	if max > 0 && len(points) > max {
		points = points[len(points)-max:]
	}
	out := make([]models.TimeSeriesPoint, len(points))
	copy(out, points)
	return out
}
