package models

import (
	"time"

	"github.com/pkg/errors"
)

const (
	TabDateLayout    = "2006-01-02"
	ReportTimeLayout = "2006-01-02 15:04:05"
)

// Status is written to the sheet verbatim.
type Status string

const (
	StatusSigned  Status = "已簽收"
	StatusNotHome Status = "不在家"
)

var Statuses = []Status{StatusSigned, StatusNotHome}

// ParseStatus accepts the sheet labels and the ascii aliases used by the JSON API.
func ParseStatus(s string) (Status, error) {
	switch s {
	case string(StatusSigned), "signed":
		return StatusSigned, nil
	case string(StatusNotHome), "not-home", "not_home":
		return StatusNotHome, nil
	}
	return "", errors.Errorf("unknown delivery status %q", s)
}

type Report struct {
	ReportTime time.Time
	OrderID    string
	CashAmount int64
	Status     Status
	ActualQty  int64
	EmptyQty   int64
	Note       string
}

// TabTitle is the daily tab the report belongs to.
func (r Report) TabTitle() string {
	return r.ReportTime.Format(TabDateLayout)
}
