package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/DeliveryReport/internal/broker/messages"
	"github.com/BearBump/DeliveryReport/internal/cache"
	"github.com/BearBump/DeliveryReport/internal/metrics"
	"github.com/BearBump/DeliveryReport/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultClaimTTL = 24 * time.Hour

	claimPending = "pending"
)

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// Input is what the driver filled in on the form.
type Input struct {
	OrderID    string
	CashAmount int64
	Status     models.Status
	ActualQty  int64
	EmptyQty   int64
	Note       string
}

type Result struct {
	Report     models.Report `json:"report"`
	Tab        string        `json:"tab"`
	TabCreated bool          `json:"tab_created"`
	// Replayed is set when the result comes from an earlier identical submission.
	Replayed bool `json:"-"`
}

// Message is the confirmation shown to the driver.
func (r Result) Message() string {
	msg := "回報成功！狀態：" + string(r.Report.Status)
	if r.Report.CashAmount > 0 {
		msg += fmt.Sprintf(" (收現: $%d)", r.Report.CashAmount)
	}
	return msg
}

type Service struct {
	locator *Locator
	now     func() time.Time
	loc     *time.Location

	producer Producer
	topic    string

	claims   cache.ClaimStore
	claimTTL time.Duration

	metrics *metrics.Metrics
}

func New(locator *Locator) *Service {
	return &Service{
		locator:  locator,
		now:      time.Now,
		loc:      time.Local,
		claimTTL: DefaultClaimTTL,
	}
}

// WithClock sets the clock and the zone report times and tab dates are taken in.
func (s *Service) WithClock(now func() time.Time, loc *time.Location) *Service {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) WithClaims(c cache.ClaimStore, ttl time.Duration) *Service {
	s.claims = c
	if ttl > 0 {
		s.claimTTL = ttl
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) Schema() models.Schema { return s.locator.Schema() }

// Submit appends one row for in to today's tab.
func (s *Service) Submit(ctx context.Context, in Input) (Result, error) {
	status, err := validate(in)
	if err != nil {
		s.metrics.Failed(Reason(err))
		return Result{}, err
	}

	started := time.Now()
	report := models.Report{
		ReportTime: s.now().In(s.loc),
		OrderID:    in.OrderID,
		CashAmount: in.CashAmount,
		Status:     status,
		ActualQty:  in.ActualQty,
		EmptyQty:   in.EmptyQty,
		Note:       in.Note,
	}
	if !s.Schema().Has("cash_amount") {
		report.CashAmount = 0
	}

	located, err := s.locator.LocateOrCreate(ctx, report.ReportTime)
	if err != nil {
		s.metrics.Failed(Reason(err))
		slog.Error("locate daily tab", "order_id", in.OrderID, "err", err)
		return Result{}, err
	}
	if located.Created {
		slog.Info("daily tab created", "tab", located.Tab.Title)
	}

	if err := located.Sheet.AppendRow(ctx, located.Tab, s.Schema().Row(report)); err != nil {
		err = storageErr("append row", err)
		s.metrics.Failed(Reason(err))
		slog.Error("append delivery report", "order_id", in.OrderID, "tab", located.Tab.Title, "err", err)
		return Result{}, err
	}

	s.metrics.Submitted(string(status), time.Since(started))
	slog.Info("delivery report appended", "order_id", in.OrderID, "tab", located.Tab.Title, "status", string(status))

	res := Result{Report: report, Tab: located.Tab.Title, TabCreated: located.Created}
	s.publish(ctx, res)
	return res, nil
}

// SubmitOnce runs Submit at most once per submissionID. A repeat of a
// finished submission gets the stored result back; a repeat of one still
// running gets ErrSubmissionInFlight. Failed submissions release the id so
// the driver can try again.
func (s *Service) SubmitOnce(ctx context.Context, submissionID string, in Input) (Result, error) {
	if s.claims == nil || submissionID == "" {
		return s.Submit(ctx, in)
	}

	key := claimKey(submissionID)
	won, err := s.claims.SetNX(ctx, key, []byte(claimPending), s.claimTTL)
	if err != nil {
		slog.Warn("submission claim unavailable, submitting without it", "order_id", in.OrderID, "err", err)
		return s.Submit(ctx, in)
	}
	if !won {
		return s.replay(ctx, key)
	}

	res, err := s.Submit(ctx, in)
	if err != nil {
		if derr := s.claims.Delete(ctx, key); derr != nil {
			slog.Warn("release submission claim", "order_id", in.OrderID, "err", derr)
		}
		return Result{}, err
	}

	b, err := json.Marshal(res)
	if err == nil {
		err = s.claims.Set(ctx, key, b, s.claimTTL)
	}
	if err != nil {
		// never leave the pending marker behind
		slog.Warn("store submission result", "order_id", in.OrderID, "err", err)
		if derr := s.claims.Delete(ctx, key); derr != nil {
			slog.Warn("release submission claim", "order_id", in.OrderID, "err", derr)
		}
	}
	return res, nil
}

func (s *Service) replay(ctx context.Context, key string) (Result, error) {
	b, ok, err := s.claims.Get(ctx, key)
	if err != nil || !ok || string(b) == claimPending {
		s.metrics.Failed(Reason(ErrSubmissionInFlight))
		return Result{}, ErrSubmissionInFlight
	}
	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return Result{}, errors.Wrap(err, "decode stored submission")
	}
	res.Replayed = true
	return res, nil
}

func (s *Service) publish(ctx context.Context, res Result) {
	if s.producer == nil || s.topic == "" {
		return
	}
	r := res.Report
	msg := messages.DeliveryReported{
		OrderID:    r.OrderID,
		ReportedAt: r.ReportTime,
		Status:     string(r.Status),
		CashAmount: r.CashAmount,
		ActualQty:  r.ActualQty,
		EmptyQty:   r.EmptyQty,
		Note:       r.Note,
		Tab:        res.Tab,
	}
	// the row is already written; a lost event is only logged
	if err := s.producer.PublishJSON(ctx, s.topic, r.OrderID, msg); err != nil {
		slog.Warn("publish delivery reported", "order_id", r.OrderID, "err", err)
	}
}

func validate(in Input) (models.Status, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return "", errors.Wrap(ErrInvalidReport, "order id is required")
	}
	if in.CashAmount < 0 || in.ActualQty < 0 || in.EmptyQty < 0 {
		return "", errors.Wrap(ErrInvalidReport, "amounts must not be negative")
	}
	status, err := models.ParseStatus(string(in.Status))
	if err != nil {
		return "", errors.Wrap(ErrInvalidReport, err.Error())
	}
	return status, nil
}

func claimKey(submissionID string) string {
	return "reports:submission:" + submissionID
}
