package xlsxbook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestClient_Flow(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	ctx := context.Background()

	_, err := c.OpenSpreadsheet(ctx, "海象淨水_2026配送總表")
	require.ErrorIs(t, err, sheets.ErrSpreadsheetNotFound)

	require.NoError(t, c.CreateSpreadsheet("海象淨水_2026配送總表"))
	sh, err := c.OpenSpreadsheet(ctx, "海象淨水_2026配送總表")
	require.NoError(t, err)

	_, err = sh.Worksheet(ctx, "2026-10-17")
	require.ErrorIs(t, err, sheets.ErrWorksheetNotFound)

	tab, err := sh.AddWorksheet(ctx, sheets.WorksheetSpec{Title: "2026-10-17", Rows: 100, Cols: 20, Header: []string{"回報時間", "送水單號", "收現金額"}})
	require.NoError(t, err)

	_, err = sh.AddWorksheet(ctx, sheets.WorksheetSpec{Title: "2026-10-17", Header: []string{"x"}})
	require.ErrorIs(t, err, sheets.ErrWorksheetExists)

	got, err := sh.Worksheet(ctx, "2026-10-17")
	require.NoError(t, err)
	require.Equal(t, tab.ID, got.ID)

	require.NoError(t, sh.AppendRow(ctx, tab, []any{"2026-10-17 09:00:00", "ORD1", int64(150)}))
	require.NoError(t, sh.AppendRow(ctx, tab, []any{"2026-10-17 09:30:00", "ORD2", int64(0)}))

	f, err := excelize.OpenFile(filepath.Join(dir, "海象淨水_2026配送總表.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("2026-10-17")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"回報時間", "送水單號", "收現金額"},
		{"2026-10-17 09:00:00", "ORD1", "150"},
		{"2026-10-17 09:30:00", "ORD2", "0"},
	}, rows)
}

func TestClient_AppendRow_MissingTab(t *testing.T) {
	c := New(t.TempDir())
	require.NoError(t, c.CreateSpreadsheet("m"))
	sh, err := c.OpenSpreadsheet(context.Background(), "m")
	require.NoError(t, err)

	err = sh.AppendRow(context.Background(), sheets.Tab{Title: "nope"}, []any{"a"})
	require.ErrorIs(t, err, sheets.ErrWorksheetNotFound)
}
