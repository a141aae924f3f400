package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuildConfigLevels(t *testing.T) {
	cases := []struct {
		env  string
		want zap.AtomicLevel
	}{
		{env: "development", want: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{env: "debug", want: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{env: "production", want: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{env: "whatever", want: zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			cfg := buildConfig(tc.env)
			assert.Equal(t, tc.want.Level(), cfg.Level.Level())
			assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
		})
	}
}

func TestNopAndWith(t *testing.T) {
	l := Nop().With("group", "XI AKL 1")
	l.Infow("discarded", "count", 3)
	l.SafeSync()

	var nilLogger *Logger
	nilLogger.SafeSync()
}
