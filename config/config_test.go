package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInlineSource(t *testing.T) {
	cfg, err := Parse("test.hcl", []byte(`
experiment {
  source = "x = 1"
  seed   = 42
  blocks = ["generation"]
  externals = {
    size = 100
    rate = 0.1
    name = "demo"
    flag = true
  }
}
`))
	require.NoError(t, err)
	assert.Equal(t, "x = 1", cfg.Source)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, []string{"generation"}, cfg.Blocks)
	assert.Equal(t, 100.0, cfg.Externals["size"])
	assert.Equal(t, 0.1, cfg.Externals["rate"])
	assert.Equal(t, "demo", cfg.Externals["name"])
	assert.Equal(t, true, cfg.Externals["flag"])
}

func TestParseMissingExperimentBlock(t *testing.T) {
	_, err := Parse("test.hcl", []byte(``))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required block "experiment"`)
}

func TestParseMissingDefinition(t *testing.T) {
	_, err := Parse("test.hcl", []byte(`
experiment {
  seed = 1
}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required key "experiment.definition"`)
}

func TestParseDefinitionAndSourceConflict(t *testing.T) {
	_, err := Parse("test.hcl", []byte(`
experiment {
  definition = "a.esdl"
  source     = "x = 1"
}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestParseListExternal(t *testing.T) {
	cfg, err := Parse("test.hcl", []byte(`
experiment {
  source = "x = 1"
  externals = {
    weights = [1, 2.5, 3]
  }
}
`))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.5, 3.0}, cfg.Externals["weights"])
}

func TestLoadResolvesDefinitionPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exp.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
experiment {
  definition = "sub/def.esdl"
}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "def.esdl"), cfg.Definition)
}

func TestParseRejectsInvalidHCL(t *testing.T) {
	_, err := Parse("test.hcl", []byte(`experiment {`))
	require.Error(t, err)
}
