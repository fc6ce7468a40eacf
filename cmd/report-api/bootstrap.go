package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/DeliveryReport/config"
	"github.com/BearBump/DeliveryReport/internal/access"
	reportsapi "github.com/BearBump/DeliveryReport/internal/api/reports_api"
	"github.com/BearBump/DeliveryReport/internal/broker/kafka"
	"github.com/BearBump/DeliveryReport/internal/cache/rediscache"
	"github.com/BearBump/DeliveryReport/internal/metrics"
	"github.com/BearBump/DeliveryReport/internal/models"
	"github.com/BearBump/DeliveryReport/internal/services/reports"
	"github.com/BearBump/DeliveryReport/internal/sheets"
	"github.com/BearBump/DeliveryReport/internal/sheets/fake"
	"github.com/BearBump/DeliveryReport/internal/sheets/googlesheets"
	"github.com/BearBump/DeliveryReport/internal/sheets/xlsxbook"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const defaultMasterSheetName = "海象淨水_2026配送總表"

type reportAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   reportAPIOpts
	api    *reportsapi.ReportsAPI
	reg    *prometheus.Registry
	ready  pinger

	closers []func() error
}

func mustBootstrapReportAPI() *reportAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	setupLogger(cfg.Server.LogLevel)

	if cfg.Reports.SecretSalt == "" {
		panic("SECRET_SALT is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &reportAPIApp{ctx: ctx, cancel: cancel}

	if err := app.wire(cfg); err != nil {
		app.Close()
		panic(err)
	}
	return app
}

func (a *reportAPIApp) wire(cfg *config.Config) error {
	loc, err := loadLocation(cfg.Server.Timezone)
	if err != nil {
		return err
	}
	schema, err := models.SchemaByName(cfg.Reports.Schema)
	if err != nil {
		return err
	}
	master := cfg.Reports.MasterSheetName
	if master == "" {
		master = defaultMasterSheetName
	}

	client, err := newSheetsClient(a.ctx, cfg, master)
	if err != nil {
		return err
	}

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.reg)

	locator := reports.NewLocator(client, master, schema).
		WithCapacity(cfg.Reports.TabRows, cfg.Reports.TabCols).
		WithMetrics(m)
	svc := reports.New(locator).
		WithClock(time.Now, loc).
		WithMetrics(m)

	a.api = reportsapi.New(access.NewVerifier(cfg.Reports.SecretSalt), svc).
		WithDefaults(valueOr(cfg.Reports.DefaultTransit, reportsapi.DefaultTransit), valueOr(cfg.Reports.DefaultEmpty, reportsapi.DefaultEmpty)).
		WithMetrics(m)

	if addr := cfg.RedisAddr(); addr != "" {
		rc := rediscache.New(addr)
		a.closers = append(a.closers, rc.Close)
		a.ready = rc
		svc.WithClaims(rc, time.Duration(cfg.Reports.SubmissionTTLSeconds)*time.Second)

		perMinute := int64(cfg.Server.RateLimitPerMinute)
		if perMinute == 0 {
			perMinute = 60
		}
		rl := rediscache.NewRateLimiter(addr)
		a.closers = append(a.closers, rl.Close)
		a.api.WithRateLimit(rl, perMinute)
	} else {
		slog.Warn("redis is not configured: no rate limit, no duplicate-submission guard")
	}

	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		topic := cfg.Kafka.ReportedTopic
		if topic == "" {
			topic = "delivery.reported"
		}
		p := kafka.NewProducer(brokers)
		a.closers = append(a.closers, p.Close)
		svc.WithProducer(p, topic)
	}

	httpAddr := cfg.Server.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	swaggerPath := cfg.Server.SwaggerPath
	if v := os.Getenv("swaggerPath"); v != "" {
		swaggerPath = v
	}
	a.opts = reportAPIOpts{
		httpAddr:          httpAddr,
		swaggerPath:       swaggerPath,
		trustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}

	slog.Info("report api configured",
		"backend", cfg.Sheets.Backend,
		"master", master,
		"schema", schema.Name,
		"timezone", loc.String(),
	)
	return nil
}

func newSheetsClient(ctx context.Context, cfg *config.Config, master string) (sheets.Client, error) {
	switch cfg.Sheets.Backend {
	case "", "google":
		creds, err := cfg.CredentialsJSON()
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Sheets.HTTPTimeoutSeconds) * time.Second
		return googlesheets.New(ctx, creds, cfg.Sheets.FolderID, timeout)
	case "xlsx":
		dir := cfg.Sheets.XLSXDir
		if dir == "" {
			dir = "data"
		}
		c := xlsxbook.New(dir)
		if cfg.Sheets.CreateMaster {
			if err := c.CreateSpreadsheet(master); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "fake":
		if cfg.Sheets.CreateMaster {
			return fake.New(master), nil
		}
		return fake.New(), nil
	}
	return nil, errors.Errorf("unknown sheets backend %q", cfg.Sheets.Backend)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", name)
	}
	return loc, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func valueOr(v *int64, def int64) int64 {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}

func (a *reportAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *reportAPIApp) Run() error {
	return runReportAPI(a.ctx, a.opts, a.api, a.reg, a.ready)
}
