package googlesheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeAPI struct {
	mu       sync.Mutex
	files    map[string]string
	tabs     map[string]int64
	queries  []string
	appended []json.RawMessage
	ranges   []string
	batches  int
	failApp  bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	p := r.URL.Path

	switch {
	case p == "/files":
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		var out []map[string]string
		for name, id := range f.files {
			if strings.Contains(q, "name = '"+name+"'") {
				out = append(out, map[string]string{"id": id, "name": name})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"files": out})

	case p == "/v4/spreadsheets/SID" && r.Method == http.MethodGet:
		var out []map[string]any
		for title, id := range f.tabs {
			out = append(out, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "SID", "sheets": out})

	case p == "/v4/spreadsheets/SID:batchUpdate":
		f.batches++
		var body struct {
			Requests []struct {
				AddSheet *struct {
					Properties struct {
						SheetID int64  `json:"sheetId"`
						Title   string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
				UpdateCells *struct {
					Rows []struct {
						Values []struct {
							UserEnteredValue struct {
								StringValue string `json:"stringValue"`
							} `json:"userEnteredValue"`
						} `json:"values"`
					} `json:"rows"`
				} `json:"updateCells"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Requests) == 0 || body.Requests[0].AddSheet == nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad request"}}`))
			return
		}
		props := body.Requests[0].AddSheet.Properties
		if _, ok := f.tabs[props.Title]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprintf(w, `{"error":{"code":400,"message":"Invalid requests[0].addSheet: A sheet with the name \"%s\" already exists. Please enter another name.","status":"INVALID_ARGUMENT"}}`, props.Title)
			return
		}
		if len(body.Requests) != 2 || body.Requests[1].UpdateCells == nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"header missing"}}`))
			return
		}
		f.tabs[props.Title] = props.SheetID
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "SID",
			"replies":       []any{map[string]any{"addSheet": map[string]any{"properties": map[string]any{"sheetId": props.SheetID, "title": props.Title}}}, map[string]any{}},
		})

	case strings.HasPrefix(p, "/v4/spreadsheets/SID/values/") && strings.HasSuffix(p, ":append"):
		if f.failApp {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
			return
		}
		f.ranges = append(f.ranges, strings.TrimSuffix(strings.TrimPrefix(p, "/v4/spreadsheets/SID/values/"), ":append"))
		if r.URL.Query().Get("valueInputOption") != "RAW" || r.URL.Query().Get("insertDataOption") != "INSERT_ROWS" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad options"}}`))
			return
		}
		var vr struct {
			Values []json.RawMessage `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "SID", "updates": map[string]any{"updatedRows": 1}})

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newTestClient(t *testing.T, api *fakeAPI, folderID string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(), folderID,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestClient_OpenSpreadsheet(t *testing.T) {
	api := &fakeAPI{files: map[string]string{"master": "SID"}, tabs: map[string]int64{}}
	c := newTestClient(t, api, "FOLDER")
	ctx := context.Background()

	_, err := c.OpenSpreadsheet(ctx, "missing")
	require.ErrorIs(t, err, sheets.ErrSpreadsheetNotFound)

	sh, err := c.OpenSpreadsheet(ctx, "master")
	require.NoError(t, err)
	require.Equal(t, "master", sh.Name())

	// second open is served from the memoised id
	_, err = c.OpenSpreadsheet(ctx, "master")
	require.NoError(t, err)
	require.Len(t, api.queries, 2)
	require.Contains(t, api.queries[1], "'FOLDER' in parents")
	require.Contains(t, api.queries[1], "application/vnd.google-apps.spreadsheet")
}

func TestSpreadsheet_AddWorksheetAndAppend(t *testing.T) {
	api := &fakeAPI{files: map[string]string{"master": "SID"}, tabs: map[string]int64{}}
	c := newTestClient(t, api, "")
	ctx := context.Background()

	sh, err := c.OpenSpreadsheet(ctx, "master")
	require.NoError(t, err)

	_, err = sh.Worksheet(ctx, "2026-10-17")
	require.ErrorIs(t, err, sheets.ErrWorksheetNotFound)

	tab, err := sh.AddWorksheet(ctx, sheets.WorksheetSpec{Title: "2026-10-17", Rows: 100, Cols: 20, Header: []string{"回報時間", "送水單號"}})
	require.NoError(t, err)
	require.Equal(t, "2026-10-17", tab.Title)
	require.NotZero(t, tab.ID)

	_, err = sh.AddWorksheet(ctx, sheets.WorksheetSpec{Title: "2026-10-17", Rows: 100, Cols: 20, Header: []string{"x"}})
	require.ErrorIs(t, err, sheets.ErrWorksheetExists)

	got, err := sh.Worksheet(ctx, "2026-10-17")
	require.NoError(t, err)
	require.Equal(t, tab.ID, got.ID)

	require.NoError(t, sh.AppendRow(ctx, tab, []any{"2026-10-17 10:00:00", "ORD123", int64(0), "已簽收", int64(8), int64(3), ""}))
	require.Len(t, api.appended, 1)
	require.JSONEq(t, `["2026-10-17 10:00:00","ORD123",0,"已簽收",8,3,""]`, string(api.appended[0]))
	require.Equal(t, []string{"'2026-10-17'!A1"}, api.ranges)
}

func TestSpreadsheet_AppendRow_ErrorCarriesMessage(t *testing.T) {
	api := &fakeAPI{files: map[string]string{"master": "SID"}, tabs: map[string]int64{"t": 1}, failApp: true}
	c := newTestClient(t, api, "")
	ctx := context.Background()

	sh, err := c.OpenSpreadsheet(ctx, "master")
	require.NoError(t, err)

	err = sh.AppendRow(ctx, sheets.Tab{ID: 1, Title: "t"}, []any{"a"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "append row")
	require.Contains(t, err.Error(), "permission")
}

func TestA1AndEscape(t *testing.T) {
	require.Equal(t, "'2026-01-02'!A1", a1("2026-01-02"))
	require.Equal(t, "'it''s'!A1", a1("it's"))
	require.Equal(t, `海象\'s`, escapeQuery("海象's"))
}
