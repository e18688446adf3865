package services

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/backend-go/internal/models"
)

func quoteRows(t *testing.T, n int) []json.RawMessage {
	t.Helper()
	rows := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		b, err := json.Marshal(models.Quote{Symbol: fmt.Sprintf("S%d", i), Price: float64(i)})
		require.NoError(t, err)
		rows = append(rows, b)
	}
	return rows
}

func TestBuildTablePagePaginates(t *testing.T) {
	rows := quoteRows(t, 7)

	page, err := BuildTablePage(rows, []string{"symbol", "price"}, 3, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, []string{"symbol", "price"}, page.Columns)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "S6", page.Rows[0]["symbol"])

	page, err = BuildTablePage(rows, []string{"symbol"}, 9, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)

	page, err = BuildTablePage(rows, []string{"symbol"}, 0, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, "S0", page.Rows[0]["symbol"])
}

func TestBuildTablePageInfersColumns(t *testing.T) {
	data := json.RawMessage(`[{"symbol":"A","price":1},{"symbol":"B","extra":{"k":true}}]`)
	page, err := BuildTablePage(data, nil, 1, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"price", "symbol", "extra.k"}, page.Columns)
	assert.Equal(t, true, page.Rows[1]["extra.k"])
}

func TestBuildTablePageSingleObjectAndEmpty(t *testing.T) {
	page, err := BuildTablePage(map[string]any{"a": 1.0}, nil, 1, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = BuildTablePage(nil, nil, 1, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Rows)
	assert.NotNil(t, page.Columns)
}

func TestBuildTablePageSelectsDottedKeys(t *testing.T) {
	data := json.RawMessage(`{"Global Quote":{"01. symbol":"IBM","05. price":"182.52"}}`)
	fields := []string{`["Global Quote"]["01. symbol"]`, `["Global Quote"]["05. price"]`}

	page, err := BuildTablePage(data, fields, 1, 3, 8)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "IBM", page.Rows[0][fields[0]])
	assert.Equal(t, "182.52", page.Rows[0][fields[1]])
}
