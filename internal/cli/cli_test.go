package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckCommand(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"check", "demo.esdl"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "check", cfg.Command)
	assert.Equal(t, "demo.esdl", cfg.Path)
	assert.False(t, cfg.SeedSet)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParseRunWithFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-seed", "9", "-steps", "5", "-log-level", "debug", "run", "exp.hcl"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "run", cfg.Command)
	assert.Equal(t, "exp.hcl", cfg.Path)
	assert.True(t, cfg.SeedSet)
	assert.Equal(t, uint64(9), cfg.Seed)
	assert.Equal(t, 5, cfg.Steps)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogLevelSet)
}

func TestParseDefaultedLogLevelIsNotSet(t *testing.T) {
	var out bytes.Buffer
	cfg, _, err := Parse([]string{"console"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogLevelSet)
}

func TestParseConsoleNeedsNoPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"console"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "console", cfg.Command)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown command":  {"frobnicate"},
		"check needs path": {"check"},
		"run needs path":   {"run"},
		"bad log format":   {"-log-format", "xml", "check", "a.esdl"},
		"bad log level":    {"-log-level", "loud", "check", "a.esdl"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(args, &out)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
