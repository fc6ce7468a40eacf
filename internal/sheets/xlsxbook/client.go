package xlsxbook

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Client stores every master spreadsheet as <dir>/<name>.xlsx. All file
// access goes through one mutex, which makes tab creation create-if-absent
// for this process.
type Client struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Client {
	return &Client{dir: dir}
}

func (c *Client) path(name string) string {
	return filepath.Join(c.dir, name+".xlsx")
}

// CreateSpreadsheet provisions an empty workbook. Existing files are kept.
func (c *Client) CreateSpreadsheet(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.path(name)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "create workbook dir")
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SaveAs(p); err != nil {
		return errors.Wrap(err, "save workbook")
	}
	return nil
}

func (c *Client) OpenSpreadsheet(ctx context.Context, name string) (sheets.Spreadsheet, error) {
	if _, err := os.Stat(c.path(name)); err != nil {
		if os.IsNotExist(err) {
			return nil, sheets.ErrSpreadsheetNotFound
		}
		return nil, errors.Wrap(err, "stat workbook")
	}
	return &workbook{c: c, name: name}, nil
}

type workbook struct {
	c    *Client
	name string
}

func (w *workbook) Name() string { return w.name }

// with opens the file, runs fn and saves when fn reports a change.
func (w *workbook) with(fn func(f *excelize.File) (bool, error)) error {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()

	f, err := excelize.OpenFile(w.c.path(w.name))
	if err != nil {
		return errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	changed, err := fn(f)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := f.Save(); err != nil {
		return errors.Wrap(err, "save workbook")
	}
	return nil
}

func (w *workbook) Worksheet(ctx context.Context, title string) (sheets.Tab, error) {
	var tab sheets.Tab
	err := w.with(func(f *excelize.File) (bool, error) {
		idx, err := f.GetSheetIndex(title)
		if err != nil {
			return false, errors.Wrap(err, "get sheet index")
		}
		if idx < 0 {
			return false, sheets.ErrWorksheetNotFound
		}
		tab = sheets.Tab{ID: int64(idx), Title: title}
		return false, nil
	})
	return tab, err
}

// AddWorksheet ignores Rows/Cols: xlsx sheets grow on write.
func (w *workbook) AddWorksheet(ctx context.Context, spec sheets.WorksheetSpec) (sheets.Tab, error) {
	var tab sheets.Tab
	err := w.with(func(f *excelize.File) (bool, error) {
		idx, err := f.GetSheetIndex(spec.Title)
		if err != nil {
			return false, errors.Wrap(err, "get sheet index")
		}
		if idx >= 0 {
			return false, sheets.ErrWorksheetExists
		}
		idx, err = f.NewSheet(spec.Title)
		if err != nil {
			return false, errors.Wrap(err, "new sheet")
		}
		if len(spec.Header) > 0 {
			header := make([]any, 0, len(spec.Header))
			for _, h := range spec.Header {
				header = append(header, h)
			}
			if err := f.SetSheetRow(spec.Title, "A1", &header); err != nil {
				return false, errors.Wrap(err, "write header")
			}
		}
		tab = sheets.Tab{ID: int64(idx), Title: spec.Title}
		return true, nil
	})
	return tab, err
}

func (w *workbook) AppendRow(ctx context.Context, tab sheets.Tab, row []any) error {
	return w.with(func(f *excelize.File) (bool, error) {
		idx, err := f.GetSheetIndex(tab.Title)
		if err != nil {
			return false, errors.Wrap(err, "get sheet index")
		}
		if idx < 0 {
			return false, sheets.ErrWorksheetNotFound
		}
		rows, err := f.GetRows(tab.Title)
		if err != nil {
			return false, errors.Wrap(err, "read rows")
		}
		cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
		if err != nil {
			return false, errors.Wrap(err, "cell name")
		}
		vals := append([]any{}, row...)
		if err := f.SetSheetRow(tab.Title, cell, &vals); err != nil {
			return false, errors.Wrap(err, "append row")
		}
		return true, nil
	})
}
