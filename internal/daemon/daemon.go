package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pulse-metrics/pulse/internal/api"
	"github.com/pulse-metrics/pulse/internal/app/ingest"
	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/app/snapcache"
	"github.com/pulse-metrics/pulse/internal/health"
	"github.com/pulse-metrics/pulse/internal/infra/sqlite"
)

// shutdownTimeout bounds how long in-flight requests may take on shutdown.
const shutdownTimeout = 15 * time.Second

// Daemon is the core Pulse runtime. It wires together all services.
type Daemon struct {
	Config   Config
	DB       *sqlite.DB
	Cache    *snapcache.Cache
	Reports  *report.Service
	Importer *ingest.Importer
	Health   *health.Checker
	Server   *api.Server

	logCloser io.Closer
	cancel    context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCloser, err := SetupLogging(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	// Open SQLite
	dataDir := cfg.DataDir()
	db, err := sqlite.Open(dataDir)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Already validated above; the errors cannot occur.
	ttl, _ := cfg.CacheTTL()
	interval, _ := cfg.HealthInterval()
	challenge, _ := cfg.ReportChallenge()

	cache := snapcache.New(cfg.Cache.Size, ttl)
	reports := report.NewService(db, cache, nil, challenge)

	importer, err := ingest.New(cfg.Mapping, db)
	if err != nil {
		db.Close()
		logCloser.Close()
		return nil, fmt.Errorf("field mapping: %w", err)
	}
	// New records change every snapshot.
	importer.OnWrite = reports.Invalidate

	checker := health.NewChecker(db, db, dataDir)
	checker.SetInterval(interval)

	srv := api.NewServer(reports, importer)
	srv.SetHealth(checker)
	srv.SetImportLog(db)

	// Enable Prometheus /metrics if configured
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	log.WithFields(log.Fields{
		"data_dir":  dataDir,
		"window":    challenge.WindowDays,
		"goal":      challenge.GoalTotal,
		"target":    challenge.TargetField,
		"cache_ttl": ttl.String(),
	}).Debug("daemon initialized")

	return &Daemon{
		Config:    cfg,
		DB:        db,
		Cache:     cache,
		Reports:   reports,
		Importer:  importer,
		Health:    checker,
		Server:    srv,
		logCloser: logCloser,
	}, nil
}

// Addr returns the configured listen address.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
}

// Serve starts the HTTP server and blocks until ctx is canceled or the
// process receives SIGINT/SIGTERM.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener serves on an existing listener. It takes ownership of ln.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Health checker (always runs)
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal or cancellation
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	url := "http://" + ln.Addr().String()
	log.WithFields(log.Fields{"addr": url}).Info("pulse serving")
	if d.Config.Telemetry.Prometheus {
		log.WithFields(log.Fields{"url": url + "/metrics"}).Info("metrics enabled")
	}

	err := g.Wait()
	log.Info("pulse stopped")
	return err
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.logCloser != nil {
		_ = d.logCloser.Close()
	}
}
