package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap/zapcore"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type RollbarReporter struct{}

var _ Reporter = (*RollbarReporter)(nil)

// NewRollbarReporter configures the global rollbar client. nil if no token is configured.
func NewRollbarReporter(conf *core.Config) *RollbarReporter {
	if conf.Logging.RollbarToken == "" {
		return nil
	}
	rollbar.SetToken(conf.Logging.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug)
	return &RollbarReporter{}
}

func (RollbarReporter) Report(lvl zapcore.Level, msg string, err error, fields map[string]interface{}, person *core.Person) {
	if person != nil {
		rollbar.SetPerson(person.ID, person.Role, "")
	} else {
		rollbar.ClearPerson()
	}

	args := make([]interface{}, 0, 3)
	args = append(args, msg)
	if err != nil {
		args = append(args, err)
	}
	if fields != nil {
		args = append(args, fields)
	}

	switch lvl {
	case zapcore.WarnLevel:
		rollbar.Warning(args...)
	case zapcore.ErrorLevel:
		rollbar.Error(args...)
	default:
		rollbar.Critical(args...)
	}
}

func (RollbarReporter) Flush() {
	rollbar.Wait()
}
