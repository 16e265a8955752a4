// Package config loads experiment files: HCL documents naming the definition
// to compile, the seed, the block order, and the external bindings handed to
// the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config is the decoded experiment file.
type Config struct {
	// Definition is the path to the ESDL file, resolved relative to the
	// config file. Empty when Source is inline.
	Definition string

	// Source is the inline ESDL definition, if the file carries one.
	Source string

	// Seed for the experiment RNG.
	Seed uint64

	// Blocks optionally names the block order for each step; empty means
	// declaration order.
	Blocks []string

	// Externals binds compile-time external names to values.
	Externals map[string]any
}

type experimentHCL struct {
	Definition string         `hcl:"definition,optional"`
	Source     string         `hcl:"source,optional"`
	Seed       *int64         `hcl:"seed,optional"`
	Blocks     []string       `hcl:"blocks,optional"`
	Externals  hcl.Expression `hcl:"externals,optional"`
}

type fileHCL struct {
	Experiment *experimentHCL `hcl:"experiment,block"`
}

// Load reads and decodes an experiment file. Missing required keys are
// reported by their dotted name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	if cfg.Definition != "" && !filepath.IsAbs(cfg.Definition) {
		cfg.Definition = filepath.Join(filepath.Dir(path), cfg.Definition)
	}
	return cfg, nil
}

// Parse decodes experiment HCL. filename is used for diagnostics only.
func Parse(filename string, src []byte) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var raw fileHCL
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, diags
	}
	if raw.Experiment == nil {
		return nil, fmt.Errorf(`missing required block "experiment"`)
	}
	exp := raw.Experiment
	if exp.Definition == "" && exp.Source == "" {
		return nil, fmt.Errorf(`missing required key "experiment.definition"`)
	}
	if exp.Definition != "" && exp.Source != "" {
		return nil, fmt.Errorf(`"experiment.definition" and "experiment.source" are mutually exclusive`)
	}

	cfg := &Config{
		Definition: exp.Definition,
		Source:     exp.Source,
		Blocks:     exp.Blocks,
	}
	if exp.Seed != nil {
		cfg.Seed = uint64(*exp.Seed)
	}

	if exp.Externals != nil {
		val, diags := exp.Externals.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		if !val.IsNull() {
			ext, err := ctyToGo(val)
			if err != nil {
				return nil, fmt.Errorf(`invalid "experiment.externals": %w`, err)
			}
			m, ok := ext.(map[string]any)
			if !ok {
				return nil, fmt.Errorf(`"experiment.externals" must be an object`)
			}
			cfg.Externals = m
		}
	}
	return cfg, nil
}

// ctyToGo converts a decoded HCL value into the plain Go values the engine
// binds to externals. Numbers always become float64, matching the numeric
// model of the language.
func ctyToGo(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			converted, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			converted, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out[kv.AsString()] = converted
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}
