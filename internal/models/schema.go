package models

import "github.com/pkg/errors"

type Field struct {
	Key    string
	Header string
	Value  func(r Report) any
}

// Schema is the ordered column layout of a daily tab. Header and Row are
// always produced from the same field list.
type Schema struct {
	Name   string
	Fields []Field
}

func (s Schema) Header() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Header)
	}
	return out
}

func (s Schema) Row(r Report) []any {
	out := make([]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Value(r))
	}
	return out
}

func (s Schema) Has(key string) bool {
	for _, f := range s.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

var (
	fieldReportTime = Field{Key: "report_time", Header: "回報時間", Value: func(r Report) any { return r.ReportTime.Format(ReportTimeLayout) }}
	fieldOrderID    = Field{Key: "order_id", Header: "送水單號", Value: func(r Report) any { return r.OrderID }}
	fieldCashAmount = Field{Key: "cash_amount", Header: "收現金額", Value: func(r Report) any { return r.CashAmount }}
	fieldStatus     = Field{Key: "delivery_status", Header: "簽收狀態", Value: func(r Report) any { return string(r.Status) }}
	fieldActualQty  = Field{Key: "actual_qty", Header: "實際配送桶數", Value: func(r Report) any { return r.ActualQty }}
	fieldEmptyQty   = Field{Key: "empty_qty", Header: "回收空桶數", Value: func(r Report) any { return r.EmptyQty }}
	fieldNote       = Field{Key: "note", Header: "師傅備註", Value: func(r Report) any { return r.Note }}
)

// SchemaWithCash is the canonical layout.
var SchemaWithCash = Schema{
	Name:   "cash",
	Fields: []Field{fieldReportTime, fieldOrderID, fieldCashAmount, fieldStatus, fieldActualQty, fieldEmptyQty, fieldNote},
}

// SchemaLegacy matches tabs created before the cash column existed.
var SchemaLegacy = Schema{
	Name:   "legacy",
	Fields: []Field{fieldReportTime, fieldOrderID, fieldStatus, fieldActualQty, fieldEmptyQty, fieldNote},
}

func SchemaByName(name string) (Schema, error) {
	switch name {
	case "", SchemaWithCash.Name:
		return SchemaWithCash, nil
	case SchemaLegacy.Name:
		return SchemaLegacy, nil
	}
	return Schema{}, errors.Errorf("unknown sheet schema %q", name)
}
