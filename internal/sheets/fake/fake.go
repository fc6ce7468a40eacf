package fake

import (
	"context"
	"sync"

	"github.com/BearBump/DeliveryReport/internal/sheets"
)

// Client keeps spreadsheets in memory. Used by the "fake" backend for local
// runs and by tests.
type Client struct {
	mu     sync.Mutex
	books  map[string]*Spreadsheet
	nextID int64

	// Fail, when set, is returned by every AddWorksheet/AppendRow call.
	Fail error
	// BeforeAdd runs (without the lock held) before a worksheet is added.
	BeforeAdd func(title string)
}

func New(names ...string) *Client {
	c := &Client{books: make(map[string]*Spreadsheet)}
	for _, n := range names {
		c.CreateSpreadsheet(n)
	}
	return c
}

func (c *Client) CreateSpreadsheet(name string) *Spreadsheet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.books[name]; ok {
		return s
	}
	s := &Spreadsheet{c: c, name: name, tabs: make(map[string]*tab)}
	c.books[name] = s
	return s
}

func (c *Client) OpenSpreadsheet(ctx context.Context, name string) (sheets.Spreadsheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.books[name]
	if !ok {
		return nil, sheets.ErrSpreadsheetNotFound
	}
	return s, nil
}

// Rows returns a copy of the rows of one tab, header included.
func (c *Client) Rows(name, title string) [][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.books[name]
	if !ok {
		return nil
	}
	t, ok := s.tabs[title]
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, append([]any{}, r...))
	}
	return out
}

// Titles returns tab titles in creation order.
func (c *Client) Titles(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.books[name]
	if !ok {
		return nil
	}
	return append([]string{}, s.order...)
}

type tab struct {
	id   int64
	rows [][]any
	cols int
}

type Spreadsheet struct {
	c     *Client
	name  string
	tabs  map[string]*tab
	order []string
}

func (s *Spreadsheet) Name() string { return s.name }

func (s *Spreadsheet) Worksheet(ctx context.Context, title string) (sheets.Tab, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	t, ok := s.tabs[title]
	if !ok {
		return sheets.Tab{}, sheets.ErrWorksheetNotFound
	}
	return sheets.Tab{ID: t.id, Title: title}, nil
}

func (s *Spreadsheet) AddWorksheet(ctx context.Context, spec sheets.WorksheetSpec) (sheets.Tab, error) {
	if s.c.BeforeAdd != nil {
		s.c.BeforeAdd(spec.Title)
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.Fail != nil {
		return sheets.Tab{}, s.c.Fail
	}
	if _, ok := s.tabs[spec.Title]; ok {
		return sheets.Tab{}, sheets.ErrWorksheetExists
	}
	s.c.nextID++
	t := &tab{id: s.c.nextID, cols: spec.Cols}
	if len(spec.Header) > 0 {
		row := make([]any, 0, len(spec.Header))
		for _, h := range spec.Header {
			row = append(row, h)
		}
		t.rows = append(t.rows, row)
	}
	s.tabs[spec.Title] = t
	s.order = append(s.order, spec.Title)
	return sheets.Tab{ID: t.id, Title: spec.Title}, nil
}

func (s *Spreadsheet) AppendRow(ctx context.Context, tb sheets.Tab, row []any) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.Fail != nil {
		return s.c.Fail
	}
	t, ok := s.tabs[tb.Title]
	if !ok {
		return sheets.ErrWorksheetNotFound
	}
	t.rows = append(t.rows, append([]any{}, row...))
	return nil
}
