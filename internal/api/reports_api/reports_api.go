package reports_api

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/DeliveryReport/internal/cache"
	"github.com/BearBump/DeliveryReport/internal/metrics"
	"github.com/BearBump/DeliveryReport/internal/models"
	"github.com/BearBump/DeliveryReport/internal/services/reports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultTransit = 10
	DefaultEmpty   = 5
)

//go:embed templates/report.html
var templatesFS embed.FS

var reportTmpl = template.Must(template.ParseFS(templatesFS, "templates/report.html"))

type Verifier interface {
	Verify(orderID, token string) bool
}

type Submitter interface {
	SubmitOnce(ctx context.Context, submissionID string, in reports.Input) (reports.Result, error)
	Schema() models.Schema
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (cache.Decision, error)
}

type ReportsAPI struct {
	verifier Verifier
	svc      Submitter

	limiter        RateLimiter
	limitPerMinute int64

	defaultTransit int64
	defaultEmpty   int64

	metrics *metrics.Metrics
}

func New(v Verifier, svc Submitter) *ReportsAPI {
	return &ReportsAPI{
		verifier:       v,
		svc:            svc,
		defaultTransit: DefaultTransit,
		defaultEmpty:   DefaultEmpty,
	}
}

// WithRateLimit caps requests per client IP per minute. perMinute <= 0 disables it.
func (a *ReportsAPI) WithRateLimit(l RateLimiter, perMinute int64) *ReportsAPI {
	a.limiter = l
	a.limitPerMinute = perMinute
	return a
}

func (a *ReportsAPI) WithDefaults(transit, empty int64) *ReportsAPI {
	a.defaultTransit = transit
	a.defaultEmpty = empty
	return a
}

func (a *ReportsAPI) WithMetrics(m *metrics.Metrics) *ReportsAPI {
	a.metrics = m
	return a
}

func (a *ReportsAPI) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(securityHeaders, a.rateLimit)
		r.Get("/", a.showForm)
		r.Post("/submit", a.submitForm)
		r.Post("/api/v1/reports", a.submitJSON)
	})
}

type pageData struct {
	Title        string
	State        string
	Action       string
	Message      string
	Error        string
	OrderID      string
	Token        string
	SubmissionID string
	ActualQty    int64
	EmptyQty     int64
	CashAmount   int64
	ShowCash     bool
	Status       string
	Statuses     []models.Status
	Note         string
}

func (a *ReportsAPI) showForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("id")
	token := q.Get("token")

	if !a.verifier.Verify(orderID, token) {
		a.metrics.Denied()
		render(w, http.StatusForbidden, pageData{Title: "存取拒絕", State: "denied"})
		return
	}

	render(w, http.StatusOK, a.formPage(orderID, token,
		intParam(q.Get("transit"), a.defaultTransit),
		intParam(q.Get("empty"), a.defaultEmpty),
	))
}

func (a *ReportsAPI) formPage(orderID, token string, transit, empty int64) pageData {
	return pageData{
		Title:        orderID,
		State:        "form",
		Action:       "/submit",
		OrderID:      orderID,
		Token:        token,
		SubmissionID: uuid.NewString(),
		ActualQty:    transit,
		EmptyQty:     empty,
		ShowCash:     a.svc.Schema().Has("cash_amount"),
		Status:       string(models.StatusSigned),
		Statuses:     models.Statuses,
	}
}

func (a *ReportsAPI) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	orderID := r.PostForm.Get("id")
	token := r.PostForm.Get("token")
	if !a.verifier.Verify(orderID, token) {
		a.metrics.Denied()
		render(w, http.StatusForbidden, pageData{Title: "存取拒絕", State: "denied"})
		return
	}

	page := a.formPage(orderID, token, 0, 0)
	page.SubmissionID = r.PostForm.Get("submission_id")
	page.Status = r.PostForm.Get("status")
	page.Note = r.PostForm.Get("note")

	var perr error
	page.ActualQty, perr = formInt(r.PostForm.Get("actual_qty"), "實際配送桶數", perr)
	page.EmptyQty, perr = formInt(r.PostForm.Get("empty_qty"), "回收空桶數", perr)
	if page.ShowCash {
		page.CashAmount, perr = formInt(r.PostForm.Get("cash_amount"), "收現金額", perr)
	}
	if perr != nil {
		page.Error = perr.Error()
		render(w, http.StatusBadRequest, page)
		return
	}

	res, err := a.svc.SubmitOnce(r.Context(), page.SubmissionID, reports.Input{
		OrderID:    orderID,
		CashAmount: page.CashAmount,
		Status:     models.Status(page.Status),
		ActualQty:  page.ActualQty,
		EmptyQty:   page.EmptyQty,
		Note:       page.Note,
	})
	if err != nil {
		code, msg := describe(err)
		// the id is kept so a click after the first attempt finishes replays it
		page.Error = msg
		render(w, code, page)
		return
	}

	render(w, http.StatusOK, pageData{Title: orderID, State: "done", OrderID: orderID, Message: res.Message()})
}

type submitRequest struct {
	OrderID      string `json:"order_id"`
	Token        string `json:"token"`
	SubmissionID string `json:"submission_id"`
	CashAmount   int64  `json:"cash_amount"`
	Status       string `json:"status"`
	ActualQty    int64  `json:"actual_qty"`
	EmptyQty     int64  `json:"empty_qty"`
	Note         string `json:"note"`
}

type submitResponse struct {
	Message    string `json:"message"`
	Tab        string `json:"tab"`
	ReportTime string `json:"report_time"`
	Replayed   bool   `json:"replayed,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (a *ReportsAPI) submitJSON(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body", Reason: "invalid"})
		return
	}
	if !a.verifier.Verify(req.OrderID, req.Token) {
		a.metrics.Denied()
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied", Reason: "access_denied"})
		return
	}

	res, err := a.svc.SubmitOnce(r.Context(), req.SubmissionID, reports.Input{
		OrderID:    req.OrderID,
		CashAmount: req.CashAmount,
		Status:     models.Status(req.Status),
		ActualQty:  req.ActualQty,
		EmptyQty:   req.EmptyQty,
		Note:       req.Note,
	})
	if err != nil {
		code, msg := describe(err)
		writeJSON(w, code, errorResponse{Error: msg, Reason: reports.Reason(err)})
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, submitResponse{
		Message:    res.Message(),
		Tab:        res.Tab,
		ReportTime: res.Report.ReportTime.Format(models.ReportTimeLayout),
		Replayed:   res.Replayed,
	})
}

// describe maps a submission error to a status code and the text shown to the driver.
func describe(err error) (int, string) {
	var se *reports.StorageError
	switch {
	case errors.Is(err, reports.ErrInvalidReport):
		return http.StatusBadRequest, "資料有誤：" + err.Error()
	case errors.Is(err, reports.ErrMasterSheetNotFound):
		return http.StatusInternalServerError, "找不到總表，請聯絡管理員"
	case errors.Is(err, reports.ErrSubmissionInFlight):
		return http.StatusConflict, "此筆回報正在處理中，請稍候"
	case errors.As(err, &se):
		return http.StatusBadGateway, "儲存失敗：" + se.Error()
	}
	return http.StatusInternalServerError, "儲存失敗：" + err.Error()
}

func (a *ReportsAPI) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || a.limitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		d, err := a.limiter.Allow(r.Context(), clientIP(r), a.limitPerMinute, time.Minute)
		if err != nil {
			slog.Warn("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !d.Allowed {
			a.metrics.Limited()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests", Reason: "rate_limited"})
				return
			}
			render(w, http.StatusTooManyRequests, pageData{Title: "請稍後再試", State: "limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// intParam parses an optional URL default; anything unusable falls back to def.
func intParam(s string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func formInt(s, field string, prev error) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		if prev == nil {
			prev = errors.Errorf("%s必須是 0 以上的整數", field)
		}
		return 0, prev
	}
	return n, prev
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func render(w http.ResponseWriter, code int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := reportTmpl.Execute(w, data); err != nil {
		slog.Error("render report page", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
