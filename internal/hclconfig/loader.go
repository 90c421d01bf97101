package hclconfig

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/graphmut/internal/config"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	environ func() []string
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{environ: os.Environ}
}

// Load parses every .hcl file reachable from paths, in lexical order, and
// merges them over config.Default. The result is validated.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := config.Default()
	evalCtx := l.evalContext()
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if err := merge(model, &root, evalCtx); err != nil {
			return nil, fmt.Errorf("invalid HCL file %s: %w", file, err)
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("HCL loading complete.",
		"files", len(files),
		"seed_nodes", len(model.Seed.Nodes),
		"seed_relationships", len(model.Seed.Relationships),
	)
	return model, nil
}

// evalContext exposes the process environment as the env object.
func (l *Loader) evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range l.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": cty.ObjectVal(env)}}
}

func merge(model *config.Model, root *fileRoot, evalCtx *hcl.EvalContext) error {
	if s := root.Server; s != nil && s.Listen != nil {
		model.Server.Listen = *s.Listen
	}
	if lg := root.Log; lg != nil {
		if lg.Level != nil {
			model.Log.Level = *lg.Level
		}
		if lg.Format != nil {
			model.Log.Format = *lg.Format
		}
	}
	if h := root.History; h != nil {
		if h.MaxCommands != nil {
			model.History.MaxCommands = *h.MaxCommands
		}
		if h.MaxTransactions != nil {
			model.History.MaxTransactions = *h.MaxTransactions
		}
	}
	if s := root.Snapshot; s != nil {
		model.Snapshot.Path = s.Path
	}

	for _, n := range root.Nodes {
		props, err := evalMap(n.Properties, evalCtx)
		if err != nil {
			return fmt.Errorf("node %q properties: %w", n.Ref, err)
		}
		model.Seed.Nodes = append(model.Seed.Nodes, config.SeedNode{
			Ref:         n.Ref,
			Type:        deref(n.Type),
			Label:       n.Label,
			Description: deref(n.Description),
			Properties:  props,
		})
	}
	for _, r := range root.Relationships {
		meta, err := evalMap(r.Meta, evalCtx)
		if err != nil {
			return fmt.Errorf("relationship %q -> %q meta: %w", r.From, r.To, err)
		}
		model.Seed.Relationships = append(model.Seed.Relationships, config.SeedRelationship{
			From:   r.From,
			To:     r.To,
			Kind:   deref(r.Kind),
			Weight: r.Weight,
			Meta:   meta,
		})
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
