package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"panel-trends/internal/alerting"
	"panel-trends/internal/api"
	"panel-trends/internal/config"
	"panel-trends/internal/metrics"
	"panel-trends/internal/scheduler"
	"panel-trends/internal/service"
	"panel-trends/internal/storage"
	"panel-trends/internal/telemetry"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// source bundles the telemetry reader with the optional panel store.
type source struct {
	reader telemetry.Reader
	lister service.PanelLister
	close  func()
}

func (a *App) openSource(ctx context.Context) (source, error) {
	switch a.Config.Telemetry.Source {
	case config.SourceHTTP:
		tc := a.Config.Telemetry
		reader := telemetry.NewHTTPReader(telemetry.HTTPOptions{
			BaseURL:      tc.BaseURL,
			Timeout:      tc.RequestTimeout,
			UserAgent:    tc.UserAgent,
			APIToken:     tc.APIToken,
			MaxBodyBytes: tc.MaxBodyBytes,
		}, a.Logger)
		return source{reader: reader, close: func() {}}, nil
	default:
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return source{}, err
		}
		if store == nil {
			return source{}, errors.New("database.dsn is required when telemetry.source is postgres")
		}
		return source{reader: store, lister: store, close: closeStore}, nil
	}
}

func (a *App) newEngine(reader telemetry.Reader, observer service.Observer) *service.Engine {
	return service.NewEngine(
		reader,
		a.Config.Analytics.Thresholds(),
		service.OptionsFromConfig(a.Config),
		observer,
		a.Logger,
	)
}

// newNotifier returns the configured channels and a release func for any
// open writers. It returns a nil Notifier when no channel is enabled.
func (a *App) newNotifier() (alerting.Notifier, func()) {
	var (
		notifiers alerting.Multi
		closers   []func()
	)
	if tg := a.Config.Alerting.Telegram; tg.Enabled {
		notifiers = append(notifiers, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
	}
	if kc := a.Config.Alerting.Kafka; kc.Enabled {
		kafka := alerting.NewKafkaNotifier(kc.Brokers, kc.Topic, kc.WriteTimeout, a.Logger)
		notifiers = append(notifiers, kafka)
		closers = append(closers, func() {
			if err := kafka.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close kafka writer")
			}
		})
	}

	release := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(notifiers) == 0 {
		return nil, release
	}
	return notifiers, release
}

func (a *App) newWatcher(engine *service.Engine, lister service.PanelLister, m *metrics.Metrics) (*service.Watcher, func(), error) {
	sched, err := scheduler.New(scheduler.Options{
		Interval:       a.Config.Watch.Interval,
		AlignToStart:   a.Config.Watch.AlignToBucket,
		StartupDelay:   a.Config.Watch.StartupDelay,
		RunImmediately: a.Config.Watch.RunImmediately,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	notifier, release := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no alerting channel enabled; suggestions are only logged")
	}
	w := service.NewWatcher(a.Config, sched, engine, lister, notifier, a.Logger).WithObserver(m)
	return w, release, nil
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	Addr  string
	Watch bool
}

// Serve runs the query API until interrupted, optionally with the watcher.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	m := metrics.New()
	engine := a.newEngine(src.reader, m)

	addr := a.Config.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(engine, m, a.Logger),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", addr).Msg("query api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if opts.Watch {
		watcher, release, err := a.newWatcher(engine, src.lister, m)
		if err != nil {
			return err
		}
		defer release()
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("serve terminated with error")
		return err
	}
	a.Logger.Info().Msg("query api stopped")
	return nil
}

// Watch runs only the maintenance suggestion watcher.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	engine := a.newEngine(src.reader, nil)
	watcher, release, err := a.newWatcher(engine, src.lister, nil)
	if err != nil {
		return err
	}
	defer release()

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Msg("starting maintenance watcher")
	err = watcher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("maintenance watcher stopped")
	return nil
}

// ReportOptions configure the report command.
type ReportOptions struct {
	PanelID       string
	Days          int
	Interval      string
	MaintenanceAt *time.Time
	JSON          bool
}

// ExportOptions hold parameters for exporting a resampled series.
type ExportOptions struct {
	PanelID   string
	Interval  string
	Limit     int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
