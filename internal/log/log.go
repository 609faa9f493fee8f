// Package log wires up the server's structured logging: info-and-below to
// stdout, warn-and-above to stderr, an optional rotating log file, and
// best-effort reporting of unexpected errors to Sentry. This is the
// ambient logging stack SPEC_FULL.md §2 calls for, built the way the
// teacher repo wires logrus.
package log

import (
	"os"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/getsentry/sentry-go"
	"github.com/matrix-org/dugong"
	"github.com/sirupsen/logrus"
)

// Options configures Setup. FilePath and SentryDSN are both optional.
type Options struct {
	Level     string // logrus level name; defaults to "info"
	FilePath  string // optional rotating log file
	SentryDSN string // optional Sentry project DSN
}

// Setup installs the demuxer hook (stdout/stderr split by level), the
// optional rotating file hook, and the optional Sentry client, returning a
// *logrus.Logger ready to be handed to every component that logs.
func Setup(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Split stdout (info/debug) from stderr (warn/error/fatal/panic), the
	// way dendrite's main entrypoints configure logrus.
	logger.AddHook(stdemuxerhook.Wrap(logger))

	if opts.FilePath != "" {
		logger.AddHook(dugong.NewFSHook(
			opts.FilePath,
			&logrus.TextFormatter{},
			&dugong.DailyRotationSchedule{},
		))
	}

	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: opts.SentryDSN}); err != nil {
			return nil, err
		}
	}

	return logger, nil
}

// ReportPanic sends a recovered panic to Sentry, if configured, tagged with
// the room and request kind that triggered it (never with map contents or
// bearer tokens — spec.md §5 panic isolation, SPEC_FULL.md §4.4). A no-op
// when Sentry was never initialized.
func ReportPanic(recovered interface{}, room, requestKind string) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("room", room)
		scope.SetTag("request_kind", requestKind)
		sentry.CurrentHub().Recover(recovered)
	})
}
