package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestLevels(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		l     *zap.Logger
		debug bool
	}{
		{"production", New("production"), false},
		{"prod", New("prod"), false},
		{"dev", New("dev"), true},
		{"cli", NewCLI(false), false},
		{"cli verbose", NewCLI(true), true},
	}
	for _, tc := range cases {
		if got := tc.l.Core().Enabled(zap.DebugLevel); got != tc.debug {
			t.Errorf("%s: debug enabled got %v, want %v", tc.name, got, tc.debug)
		}
		if !tc.l.Core().Enabled(zap.InfoLevel) {
			t.Errorf("%s: info must be enabled", tc.name)
		}
	}
}
