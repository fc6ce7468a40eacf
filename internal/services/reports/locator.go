package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/DeliveryReport/internal/metrics"
	"github.com/BearBump/DeliveryReport/internal/models"
	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/pkg/errors"
)

const (
	DefaultTabRows = 100
	DefaultTabCols = 20

	maxCreateAttempts = 3
)

// Located is the daily tab resolved for one submission.
type Located struct {
	Sheet   sheets.Spreadsheet
	Tab     sheets.Tab
	Created bool
}

type Locator struct {
	client  sheets.Client
	master  string
	schema  models.Schema
	rows    int
	cols    int
	metrics *metrics.Metrics
}

func NewLocator(client sheets.Client, master string, schema models.Schema) *Locator {
	return &Locator{
		client: client,
		master: master,
		schema: schema,
		rows:   DefaultTabRows,
		cols:   DefaultTabCols,
	}
}

// WithCapacity sets the initial grid of new tabs. It is headroom, not a cap:
// appends past it grow the sheet.
func (l *Locator) WithCapacity(rows, cols int) *Locator {
	if rows > 0 {
		l.rows = rows
	}
	if cols > 0 {
		l.cols = cols
	}
	return l
}

func (l *Locator) WithMetrics(m *metrics.Metrics) *Locator {
	l.metrics = m
	return l
}

func (l *Locator) Schema() models.Schema { return l.schema }

// LocateOrCreate returns the tab titled with today's date, creating it with a
// single header row when missing. If another writer creates the tab between
// our lookup and our create, the create fails with ErrWorksheetExists and the
// lookup is repeated.
func (l *Locator) LocateOrCreate(ctx context.Context, today time.Time) (Located, error) {
	sh, err := l.client.OpenSpreadsheet(ctx, l.master)
	if err != nil {
		if errors.Is(err, sheets.ErrSpreadsheetNotFound) {
			return Located{}, errors.Wrapf(ErrMasterSheetNotFound, "open %q", l.master)
		}
		return Located{}, storageErr("open spreadsheet", err)
	}

	title := today.Format(models.TabDateLayout)
	spec := sheets.WorksheetSpec{
		Title:  title,
		Rows:   l.rows,
		Cols:   max(l.cols, len(l.schema.Fields)),
		Header: l.schema.Header(),
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		tab, err := sh.Worksheet(ctx, title)
		if err == nil {
			return Located{Sheet: sh, Tab: tab}, nil
		}
		if !errors.Is(err, sheets.ErrWorksheetNotFound) {
			return Located{}, storageErr("find worksheet", err)
		}

		tab, err = sh.AddWorksheet(ctx, spec)
		if err == nil {
			l.metrics.TabCreated()
			return Located{Sheet: sh, Tab: tab, Created: true}, nil
		}
		if !errors.Is(err, sheets.ErrWorksheetExists) {
			return Located{}, storageErr("add worksheet", err)
		}
	}
	return Located{}, storageErr("add worksheet", fmt.Errorf("tab %s neither found nor created after %d attempts", title, maxCreateAttempts))
}
