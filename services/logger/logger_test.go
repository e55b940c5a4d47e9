package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type report struct {
	lvl    zapcore.Level
	msg    string
	err    error
	person *core.Person
}

type reporterMock struct {
	reports []report
	flushes int
}

func (r *reporterMock) Report(lvl zapcore.Level, msg string, err error, _ map[string]interface{}, person *core.Person) {
	r.reports = append(r.reports, report{lvl: lvl, msg: msg, err: err, person: person})
}

func (r *reporterMock) Flush() { r.flushes++ }

func newObservedLogger(lvl zapcore.Level) (*Logger, *observer.ObservedLogs, *reporterMock) {
	obsCore, logs := observer.New(lvl)
	rep := new(reporterMock)
	return &Logger{base: zap.New(obsCore), level: zap.NewAtomicLevelAt(lvl), reporters: []Reporter{rep}}, logs, rep
}

func TestLogger_fields(t *testing.T) {
	logger, logs, rep := newObservedLogger(zap.DebugLevel)

	err := errors.New("boom")
	person := core.Person{ID: "u1", Role: "admin"}
	logger.Error("reconcile failed", err, map[string]interface{}{"lesson_id": "l1"}, person, core.Person{ID: "ignored"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "reconcile failed", entries[0].Message)
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "l1", ctx["lesson_id"])
		assert.Equal(t, "u1", ctx["person_id"])
		assert.Equal(t, "admin", ctx["person_role"])
	}
	if assert.Len(t, rep.reports, 1) {
		assert.Equal(t, zap.ErrorLevel, rep.reports[0].lvl)
		assert.Equal(t, err, rep.reports[0].err)
		assert.Equal(t, "u1", rep.reports[0].person.ID)
	}
}

func TestLogger_reportsWarningsAndAbove(t *testing.T) {
	tests := []struct {
		name       string
		log        func(l *Logger)
		wantReport bool
	}{
		{name: "debug", log: func(l *Logger) { l.Debug("d") }},
		{name: "info", log: func(l *Logger) { l.Info("i") }},
		{name: "warn", log: func(l *Logger) { l.Warn("w") }, wantReport: true},
		{name: "error", log: func(l *Logger) { l.Error("e") }, wantReport: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs, rep := newObservedLogger(zap.DebugLevel)
			tt.log(logger)
			assert.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.wantReport, len(rep.reports) == 1)
		})
	}
}

func TestNewNop(t *testing.T) {
	nop := NewNop()
	assert.NotPanics(t, func() {
		nop.Info("x")
		nop.Warn("y", errors.New("z"))
		nop.Named("sub").Debug("d")
		nop.Sync()
	})
}
