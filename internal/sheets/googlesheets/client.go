package googlesheets

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var Scopes = []string{gsheets.SpreadsheetsScope, drive.DriveScope}

type Client struct {
	sheets   *gsheets.Service
	drive    *drive.Service
	folderID string

	mu  sync.Mutex
	ids map[string]string
}

// New builds a client from a service account JSON key.
func New(ctx context.Context, credentialsJSON []byte, folderID string, timeout time.Duration) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, Scopes...)
	if err != nil {
		return nil, errors.Wrap(err, "parse service account credentials")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := oauth2.NewClient(ctx, creds.TokenSource)
	hc.Timeout = timeout
	return NewWithOptions(ctx, folderID, option.WithHTTPClient(hc))
}

func NewWithOptions(ctx context.Context, folderID string, opts ...option.ClientOption) (*Client, error) {
	ss, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new sheets service")
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "new drive service")
	}
	return &Client{
		sheets:   ss,
		drive:    ds,
		folderID: folderID,
		ids:      make(map[string]string),
	}, nil
}

func (c *Client) OpenSpreadsheet(ctx context.Context, name string) (sheets.Spreadsheet, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return &spreadsheet{c: c, id: id, name: name}, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), spreadsheetMimeType)
	if c.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(c.folderID))
	}
	res, err := c.drive.Files.List().
		Q(q).
		Fields("files(id,name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "drive list files")
	}
	if len(res.Files) == 0 {
		return nil, sheets.ErrSpreadsheetNotFound
	}

	id = res.Files[0].Id
	c.mu.Lock()
	c.ids[name] = id
	c.mu.Unlock()
	return &spreadsheet{c: c, id: id, name: name}, nil
}

type spreadsheet struct {
	c    *Client
	id   string
	name string
}

func (s *spreadsheet) Name() string { return s.name }

func (s *spreadsheet) Worksheet(ctx context.Context, title string) (sheets.Tab, error) {
	ss, err := s.c.sheets.Spreadsheets.Get(s.id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return sheets.Tab{}, errors.Wrap(err, "get spreadsheet")
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sheets.Tab{ID: sh.Properties.SheetId, Title: title}, nil
		}
	}
	return sheets.Tab{}, sheets.ErrWorksheetNotFound
}

// AddWorksheet adds the sheet and writes the header in a single batchUpdate,
// so readers never see the new tab without its header.
func (s *spreadsheet) AddWorksheet(ctx context.Context, spec sheets.WorksheetSpec) (sheets.Tab, error) {
	sheetID := rand.Int63n(math.MaxInt32-1) + 1

	reqs := []*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{
			Properties: &gsheets.SheetProperties{
				SheetId: sheetID,
				Title:   spec.Title,
				GridProperties: &gsheets.GridProperties{
					RowCount:    int64(spec.Rows),
					ColumnCount: int64(spec.Cols),
				},
			},
		},
	}}
	if len(spec.Header) > 0 {
		cells := make([]*gsheets.CellData, 0, len(spec.Header))
		for _, h := range spec.Header {
			cells = append(cells, &gsheets.CellData{UserEnteredValue: &gsheets.ExtendedValue{StringValue: &h}})
		}
		reqs = append(reqs, &gsheets.Request{
			UpdateCells: &gsheets.UpdateCellsRequest{
				Start:  &gsheets.GridCoordinate{SheetId: sheetID},
				Rows:   []*gsheets.RowData{{Values: cells}},
				Fields: "userEnteredValue",
			},
		})
	}

	resp, err := s.c.sheets.Spreadsheets.BatchUpdate(s.id, &gsheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	if err != nil {
		if isAlreadyExists(err) {
			return sheets.Tab{}, sheets.ErrWorksheetExists
		}
		return sheets.Tab{}, errors.Wrap(err, "add worksheet")
	}

	tab := sheets.Tab{ID: sheetID, Title: spec.Title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		tab.ID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	return tab, nil
}

func (s *spreadsheet) AppendRow(ctx context.Context, tab sheets.Tab, row []any) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.c.sheets.Spreadsheets.Values.Append(s.id, a1(tab.Title), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return errors.Wrap(err, "append row")
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "already exists")
}

func a1(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
