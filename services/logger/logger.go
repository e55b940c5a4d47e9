package logsvc

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

// Reporter forwards warnings and errors to an error tracking service.
type Reporter interface {
	Report(level zapcore.Level, msg string, err error, fields map[string]interface{}, person *core.Person)
	Flush()
}

// Logger writes structured logs with zap and reports warnings and errors to its Reporters.
type Logger struct {
	base      *zap.Logger
	level     zap.AtomicLevel
	reporters []Reporter
}

var _ core.Logger = (*Logger)(nil)

// New builds the application logger: JSON in production, console otherwise.
func New(conf *core.Config, reporters ...Reporter) (*Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(conf.Logging.Level))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var cfg zap.Config
	if conf.IsProd() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel), zap.AddCallerSkip(2))
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	base = base.With(zap.String("app", conf.AppName), zap.String("build", conf.Build))
	return &Logger{base: base, level: lvl, reporters: reporters}, nil
}

// NewNop returns a Logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{base: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.FatalLevel)}
}

// Named returns a child logger tagged with `name`, sharing the parent's reporters.
func (l *Logger) Named(name string) *Logger {
	return &Logger{base: l.base.Named(name), level: l.level, reporters: l.reporters}
}

func (l *Logger) SetLevel(lvl zapcore.Level) {
	l.level.SetLevel(lvl)
}

// Sync flushes buffered logs and pending reports.
func (l *Logger) Sync() {
	_ = l.base.Sync()
	for _, r := range l.reporters {
		r.Flush()
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(zap.DebugLevel, msg, args)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(zap.InfoLevel, msg, args)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(zap.WarnLevel, msg, args)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(zap.ErrorLevel, msg, args)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(zap.FatalLevel, msg, args)
}

// expected args: error, map[string]interface{}, core.Person
func (l *Logger) log(lvl zapcore.Level, msg string, args []interface{}) {
	var (
		err    error
		person *core.Person
		extras map[string]interface{}
	)
	fields := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			err = a
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			extras = a
			for k, v := range a {
				fields = append(fields, zap.Any(k, v))
			}
		case core.Person:
			if person == nil { // only set one Person
				p := a
				person = &p
				fields = append(fields, zap.String("person_id", a.ID), zap.String("person_role", a.Role))
			}
		default:
			fields = append(fields, zap.Any("arg", a))
		}
	}

	if lvl >= zap.WarnLevel {
		for _, r := range l.reporters {
			r.Report(lvl, msg, err, extras, person)
		}
		if lvl == zap.FatalLevel {
			for _, r := range l.reporters {
				r.Flush()
			}
		}
	}

	if ce := l.base.Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}
