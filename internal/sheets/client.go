package sheets

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	ErrWorksheetNotFound   = errors.New("worksheet not found")
	ErrWorksheetExists     = errors.New("worksheet already exists")
)

// Tab identifies one worksheet inside a spreadsheet.
type Tab struct {
	ID    int64
	Title string
}

type WorksheetSpec struct {
	Title  string
	Rows   int
	Cols   int
	Header []string
}

// Client opens spreadsheets by their display name.
type Client interface {
	OpenSpreadsheet(ctx context.Context, name string) (Spreadsheet, error)
}

type Spreadsheet interface {
	Name() string
	Worksheet(ctx context.Context, title string) (Tab, error)
	// AddWorksheet creates the tab and writes spec.Header as its first row.
	// Returns ErrWorksheetExists when the title is already taken.
	AddWorksheet(ctx context.Context, spec WorksheetSpec) (Tab, error)
	AppendRow(ctx context.Context, tab Tab, row []any) error
}
