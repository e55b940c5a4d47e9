package logsvc

import "github.com/mrdawstar/LinguaLab-sub000/core"

// NewReporters returns the error trackers enabled by the config.
func NewReporters(conf *core.Config) ([]Reporter, error) {
	reporters := make([]Reporter, 0, 2)
	if r := NewRollbarReporter(conf); r != nil {
		reporters = append(reporters, r)
	}
	sr, err := NewSentryReporter(conf)
	if err != nil {
		return nil, err
	}
	if sr != nil {
		reporters = append(reporters, sr)
	}
	return reporters, nil
}
