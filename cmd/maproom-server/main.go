// Command maproom-server is the process entrypoint: parse flags/config,
// wire up logging, the room and session registries, the automapper
// runner, the shared dispatcher, and both transports, then serve until a
// shutdown signal arrives. Structured the way dendrite's own cmd/
// entrypoints assemble a monolith, narrowed to this service's single
// process.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillamux "github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ddnet/maproom/automapper"
	"github.com/ddnet/maproom/dispatch"
	"github.com/ddnet/maproom/internal/caching"
	ilog "github.com/ddnet/maproom/internal/log"
	"github.com/ddnet/maproom/metrics"
	"github.com/ddnet/maproom/room"
	"github.com/ddnet/maproom/session"
	"github.com/ddnet/maproom/setup/config"
	httptransport "github.com/ddnet/maproom/transport/http"
	"github.com/ddnet/maproom/transport/ws"

	"github.com/ddnet/maproom/internal/httputil"
)

// serverTimeout bounds how long Shutdown waits for in-flight requests to
// drain before the process gives up and exits anyway.
const serverTimeout = 10 * time.Second

func main() {
	cfg, err := config.ParseFlags("maproom-server", os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse configuration")
	}

	log, err := ilog.Setup(ilog.Options{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		SentryDSN: cfg.Logging.SentryDSN,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	cache, err := caching.NewMapCache(cfg.CacheMaxBytes)
	if err != nil {
		return err
	}

	rooms := room.NewRegistry(cache, cfg.ScanWorkers, cfg.Caps.MaxMaps)
	scanCtx, cancel := context.WithTimeout(context.Background(), config.ScanTimeout)
	defer cancel()
	if err := rooms.ScanDirectories(scanCtx, cfg.MapDirectories); err != nil {
		return err
	}
	log.WithField("rooms", rooms.Count()).Info("finished scanning map directories")

	sessions := session.NewRegistry(cfg.Caps.MaxSessions)
	runner := automapper.Runner{BinaryPath: cfg.RulesPreprocessor}
	recorder := metrics.New()

	d := &dispatch.Dispatcher{
		Rooms:          rooms,
		Sessions:       sessions,
		Runner:         runner,
		Log:            log,
		Metrics:        recorder,
		BaseDir:        firstOrEmpty(cfg.MapDirectories),
		MaxMapBytes:    cfg.Caps.MaxMapSizeKiB * 1024,
		MaxUploadBytes: cfg.Caps.BodySizeMaxMiB * 1024 * 1024,
	}

	rateLimits := httputil.NewRateLimits(cfg.RateLimiting.ToHTTPConfig())
	defer rateLimits.Stop()

	wsHandler := &ws.Handler{Dispatcher: d, Sessions: sessions, RateLimits: rateLimits, Log: log}
	httpHandler := &httptransport.Handler{
		Dispatcher:   d,
		Sessions:     sessions,
		RateLimits:   rateLimits,
		Log:          log,
		MaxBodyBytes: cfg.Caps.BodySizeMaxMiB * 1024 * 1024,
	}

	router := gorillamux.NewRouter().SkipClean(true)
	router.Handle("/ws", wsHandler)
	router.Handle("/metrics", metrics.Handler())
	router.PathPrefix("/maps").Handler(httpHandler.Router())
	if cfg.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	srv := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      router,
		WriteTimeout: 0, // websocket connections are long-lived; bound writes per-message instead
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("bind_address", cfg.BindAddress).Info("maproom-server listening")
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), serverTimeout)
	defer cancelShutdown()
	return srv.Shutdown(ctx)
}

func firstOrEmpty(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	return dirs[0]
}
