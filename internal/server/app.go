// Package server initializes and runs the account server. It opens the
// configured store, applies migrations, wires the services and runs the HTTP
// API and the gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tubeaccounts/internal/filex"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/blobstore"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/config"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/httpapi"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/metrics"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/password"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/tubeaccounts/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	registry *prometheus.Registry
	handler  *httpapi.Handler
}

// parseLevel maps a config level name to slog.Level, defaulting to Info.
func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, parseLevel(c.LogLevel))

	repos, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	uploadDir, err := filex.EnsureDir(c.UploadDir)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	uploader, err := blobstore.NewS3Store(ctx, blobstore.Config{
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	})
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("blob store: %w", err)
	}

	issuer := auth.NewIssuer(auth.Config{
		AccessSecret:  []byte(c.AccessTokenSecret),
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshSecret: []byte(c.RefreshTokenSecret),
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})

	store := credentials.NewStore(repos.Accounts(), password.NewBcryptHasher(c.BcryptCost))
	us := services.NewUserService(store, issuer, repos.Profiles(), uploader, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(registry)

	h := httpapi.NewHandler(us, issuer, logger, httpapi.Options{
		CookieSecure:   c.CookieSecure,
		CookieSameSite: httpapi.ParseSameSite(c.CookieSameSite),
		AccessTTL:      c.AccessTokenValidityDuration,
		RefreshTTL:     c.RefreshTokenValidityDuration,
		UploadDir:      uploadDir,
		MaxUploadBytes: c.MaxUploadBytes,
	})

	return &App{config: c, logger: logger, repos: repos, registry: registry, handler: h}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.handler, app.repos, app.registry)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.repos)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or either server fails, then closes the
// store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(context.WithoutCancel(ctx)); err != nil {
		app.logger.Error(ctx, "close store", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
