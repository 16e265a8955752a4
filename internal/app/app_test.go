package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooba/esdlc/internal/cli"
	"github.com/zooba/esdlc/registry"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseConfig(command, path string) *cli.Config {
	return &cli.Config{
		Command:   command,
		Path:      path,
		Steps:     1,
		LogFormat: "text",
		LogLevel:  "error",
		NoColor:   true,
	}
}

func TestMergeBuiltinsCallerOverridesBuiltIn(t *testing.T) {
	custom := registry.New()
	custom.Register("best", "custom")
	custom.Register("tournament", "extra")

	var merged *registry.Registry
	assert.NotPanics(t, func() { merged = mergeBuiltins(custom) })

	got, ok := merged.Lookup("best")
	require.True(t, ok)
	assert.Equal(t, "custom", got)
	_, ok = merged.Lookup("tournament")
	assert.True(t, ok)
	_, ok = merged.Lookup("random_shuffle")
	assert.True(t, ok)
}

func TestCheckValidDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ok.esdl", "FROM src SELECT (3) a, b\n")
	var out bytes.Buffer
	cfg := baseConfig("check", path)
	a := NewApp(&out, cfg, nil)
	require.NoError(t, a.Run(context.Background(), cfg))
	assert.Contains(t, out.String(), "ok")
}

func TestCheckReportsErrorsWithExitCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.esdl", "FROM a SELECT b, b\n")
	var out bytes.Buffer
	cfg := baseConfig("check", path)
	a := NewApp(&out, cfg, nil)
	err := a.Run(context.Background(), cfg)
	require.Error(t, err)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out.String(), "E2001")
}

func TestRunInlineExperiment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "exp.hcl", `
experiment {
  source = <<EOT
FROM repeat_value() SELECT (size) population
BEGIN gen
    FROM population SELECT population USING random_shuffle
    YIELD population
END gen
EOT
  seed = 3
  externals = {
    size = 5
  }
}
`)
	var out bytes.Buffer
	cfg := baseConfig("run", path)
	cfg.Steps = 2
	a := NewApp(&out, cfg, nil)
	// repeat_value is not built in; the run must fail eagerly, naming it.
	err := a.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeat_value")
}

func TestRunExperimentWithDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "def.esdl", `FROM seeds SELECT population
BEGIN gen
    FROM population SELECT population USING random_shuffle
    YIELD population
END gen
`)
	path := writeFile(t, dir, "exp.hcl", `
experiment {
  definition = "def.esdl"
  seed       = 11
  externals = {
    seeds = [1, 2, 3]
  }
}
`)
	var out bytes.Buffer
	cfg := baseConfig("run", path)
	a := NewApp(&out, cfg, nil)
	require.NoError(t, a.Run(context.Background(), cfg))
	assert.Contains(t, out.String(), "completed 1 step(s)")
}
