package services

import (
	"encoding/json"

	"finboard/backend-go/internal/models"
)

// BuildTablePage pages a widget payload into rows. Arrays give one row per item;
// a single object gives one row. With fields set, rows carry only those
// paths; otherwise every leaf path of the item becomes a column.
func BuildTablePage(data any, fields []string, page, pageSize, maxDepth int) (models.TablePage, error) {
	if pageSize <= 0 {
		pageSize = 3
	}
	doc, err := toGeneric(data)
	if err != nil {
		return models.TablePage{}, err
	}

	var items []any
	switch t := doc.(type) {
	case nil:
	case []any:
		items = t
	default:
		items = []any{t}
	}

	rows := make([]map[string]any, 0, len(items))
	columns := append([]string(nil), fields...)
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}
	for _, it := range items {
		row := rowOf(it, fields, maxDepth)
		if len(fields) == 0 {
			for _, lp := range LeafPaths(it, maxDepth) {
				if !seen[lp.Path] {
					seen[lp.Path] = true
					columns = append(columns, lp.Path)
				}
			}
			if _, scalar := row["value"]; scalar && !seen["value"] {
				seen["value"] = true
				columns = append(columns, "value")
			}
		}
		rows = append(rows, row)
	}

	total := len(rows)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	if columns == nil {
		columns = []string{}
	}
	return models.TablePage{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      total,
		Columns:    columns,
		Rows:       rows[start:end],
	}, nil
}

func rowOf(item any, fields []string, maxDepth int) map[string]any {
	if len(fields) > 0 {
		return ExtractFields(item, fields)
	}
	switch item.(type) {
	case map[string]any, []any:
		paths := LeafPaths(item, maxDepth)
		row := make(map[string]any, len(paths))
		for _, p := range paths {
			row[p.Path] = p.Sample
		}
		return row
	}
	return map[string]any{"value": item}
}

// toGeneric turns typed payloads (json.RawMessage, normalized structs) into
// the map/slice form the path helpers walk.
func toGeneric(data any) (any, error) {
	switch t := data.(type) {
	case nil:
		return nil, nil
	case map[string]any, []any:
		return t, nil
	case json.RawMessage:
		var out any
		if len(t) == 0 {
			return nil, nil
		}
		err := json.Unmarshal(t, &out)
		return out, err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(b, &out)
	return out, err
}
