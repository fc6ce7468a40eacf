package messages

import "time"

// DeliveryReported is published after a report row has been appended.
type DeliveryReported struct {
	OrderID    string    `json:"order_id"`
	ReportedAt time.Time `json:"reported_at"`
	Status     string    `json:"status"`
	CashAmount int64     `json:"cash_amount"`
	ActualQty  int64     `json:"actual_qty"`
	EmptyQty   int64     `json:"empty_qty"`
	Note       string    `json:"note,omitempty"`
	Tab        string    `json:"tab"`
}

// OrderDispatched is emitted by the dispatch side when an order leaves the depot.
type OrderDispatched struct {
	OrderID    string `json:"order_id"`
	TransitQty *int64 `json:"transit_qty,omitempty"`
	EmptyQty   *int64 `json:"empty_qty,omitempty"`
}

type LinkIssued struct {
	OrderID  string    `json:"order_id"`
	URL      string    `json:"url"`
	IssuedAt time.Time `json:"issued_at"`
}
