package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestSelectWriter(t *testing.T) {
	orig := isTerminalFn
	t.Cleanup(func() { isTerminalFn = orig })

	_, console := selectWriter("console", os.Stderr).(zerolog.ConsoleWriter)
	assert.True(t, console)
	assert.Equal(t, os.Stderr, selectWriter("json", os.Stderr))

	isTerminalFn = func(int) bool { return true }
	_, console = selectWriter("auto", os.Stderr).(zerolog.ConsoleWriter)
	assert.True(t, console)

	isTerminalFn = func(int) bool { return false }
	assert.Equal(t, os.Stderr, selectWriter("auto", os.Stderr))
}

func TestInit_SetsGlobals(t *testing.T) {
	origLogger, origLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = origLogger
		zerolog.SetGlobalLevel(origLevel)
	})

	Init(Config{Format: "json", Level: "warn", Component: "portal"})

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Same(t, &log.Logger, zerolog.DefaultContextLogger)
}
