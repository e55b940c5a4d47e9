package logsvc

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type SentryReporter struct{}

var _ Reporter = (*SentryReporter)(nil)

// NewSentryReporter initializes the global sentry client. nil if no DSN is configured.
func NewSentryReporter(conf *core.Config) (*SentryReporter, error) {
	if conf.Logging.SentryDSN == "" {
		return nil, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         conf.Logging.SentryDSN,
		Environment: conf.Env,
		Release:     conf.Build,
		ServerName:  conf.Server.Host,
	}); err != nil {
		return nil, errors.Wrap(err, "initializing sentry")
	}
	return &SentryReporter{}, nil
}

func (SentryReporter) Report(lvl zapcore.Level, msg string, err error, fields map[string]interface{}, person *core.Person) {
	sentry.WithScope(func(scope *sentry.Scope) {
		switch lvl {
		case zapcore.WarnLevel:
			scope.SetLevel(sentry.LevelWarning)
		case zapcore.ErrorLevel:
			scope.SetLevel(sentry.LevelError)
		default:
			scope.SetLevel(sentry.LevelFatal)
		}
		if person != nil {
			scope.SetUser(sentry.User{ID: person.ID})
			scope.SetTag("role", person.Role)
			if person.SchoolID != "" {
				scope.SetTag("school_id", person.SchoolID)
			}
		}
		if fields != nil {
			scope.SetContext("fields", fields)
		}

		if err != nil {
			scope.SetTag("message", msg)
			sentry.CaptureException(err)
		} else {
			sentry.CaptureMessage(msg)
		}
	})
}

func (SentryReporter) Flush() {
	sentry.Flush(2 * time.Second)
}
