package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchemaWithCash_HeaderAndRowInLockstep(t *testing.T) {
	r := Report{
		ReportTime: time.Date(2026, 3, 4, 9, 5, 7, 0, time.Local),
		OrderID:    "ORD123",
		Status:     StatusSigned,
		ActualQty:  8,
		EmptyQty:   3,
	}

	require.Equal(t, []string{"回報時間", "送水單號", "收現金額", "簽收狀態", "實際配送桶數", "回收空桶數", "師傅備註"}, SchemaWithCash.Header())
	require.Equal(t, []any{"2026-03-04 09:05:07", "ORD123", int64(0), "已簽收", int64(8), int64(3), ""}, SchemaWithCash.Row(r))
	require.Equal(t, "2026-03-04", r.TabTitle())
}

func TestSchemaLegacy_DropsCash(t *testing.T) {
	r := Report{ReportTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), OrderID: "A", CashAmount: 500, Status: StatusNotHome}

	require.Len(t, SchemaLegacy.Header(), 6)
	require.Len(t, SchemaLegacy.Row(r), len(SchemaLegacy.Header()))
	require.NotContains(t, SchemaLegacy.Row(r), int64(500))
	require.False(t, SchemaLegacy.Has("cash_amount"))
	require.True(t, SchemaWithCash.Has("cash_amount"))
}

func TestSchemaByName(t *testing.T) {
	s, err := SchemaByName("")
	require.NoError(t, err)
	require.Equal(t, "cash", s.Name)

	s, err = SchemaByName("legacy")
	require.NoError(t, err)
	require.Equal(t, "legacy", s.Name)

	_, err = SchemaByName("v3")
	require.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"已簽收":      StatusSigned,
		"signed":   StatusSigned,
		"不在家":      StatusNotHome,
		"not-home": StatusNotHome,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseStatus("lost")
	require.Error(t, err)
}
