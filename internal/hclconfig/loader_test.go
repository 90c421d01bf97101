package hclconfig

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/graphmut/internal/config"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(env ...string) *Loader {
	return &Loader{environ: func() []string { return env }}
}

func TestLoad_NoFilesYieldsDefaults(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"README.md": "not config"})

	model, err := NewLoader().Load(context.Background(), dir, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), model)
}

func TestLoad_FullConfiguration(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"service.hcl": `
server { listen = env.LISTEN }
log {
  level  = "debug"
  format = "json"
}
history { max_commands = 25 }
snapshot { path = "/var/lib/graphmut" }
`,
		"seed/graph.hcl": `
node "gov" {
  type        = "institution"
  label       = "Government"
  description = "Central government"
  properties  = {
    budget = 1.5
    tags   = ["public", "federal"]
    nested = { active = true }
  }
}

node "tax" {
  type  = "policy"
  label = "Income tax"
}

relationship "gov" "tax" {
  kind   = "enacts"
  weight = 0.8
  meta   = { since = 2001 }
}
`,
	})

	var logs testutil.SafeBuffer
	ctx := ctxlog.WithLogger(context.Background(), testutil.NewLogger(&logs))

	model, err := newTestLoader("LISTEN=:9090", "MALFORMED").Load(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", model.Server.Listen)
	assert.Equal(t, config.Log{Level: "debug", Format: "json"}, model.Log)
	assert.Equal(t, 25, model.History.MaxCommands)
	assert.Equal(t, config.DefaultMaxTransactions, model.History.MaxTransactions)
	assert.Equal(t, "/var/lib/graphmut", model.Snapshot.Path)

	require.Len(t, model.Seed.Nodes, 2)
	gov := model.Seed.Nodes[0]
	assert.Equal(t, "gov", gov.Ref)
	assert.Equal(t, "institution", gov.Type)
	assert.Equal(t, "Central government", gov.Description)
	assert.Equal(t, map[string]any{
		"budget": 1.5,
		"tags":   []any{"public", "federal"},
		"nested": map[string]any{"active": true},
	}, gov.Properties)
	assert.Nil(t, model.Seed.Nodes[1].Properties)

	require.Len(t, model.Seed.Relationships, 1)
	rel := model.Seed.Relationships[0]
	assert.Equal(t, "gov", rel.From)
	assert.Equal(t, "tax", rel.To)
	assert.Equal(t, "enacts", rel.Kind)
	require.NotNil(t, rel.Weight)
	assert.Equal(t, 0.8, *rel.Weight)
	assert.Equal(t, map[string]any{"since": float64(2001)}, rel.Meta)

	testutil.AssertLogged(t, &logs, "HCL loading complete.", "files=2", "seed_nodes=2")
}

func TestLoad_LaterFilesOverrideSettings(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a.hcl": `log { level = "warn" }`,
		"b.hcl": `log { level = "error" }`,
	})

	model, err := newTestLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "error", model.Log.Level)
	assert.Equal(t, config.DefaultLogFormat, model.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "syntax", content: `server {`, wantErr: "failed to parse HCL file"},
		{name: "unknown attribute", content: `server { port = 1 }`, wantErr: "failed to decode HCL file"},
		{name: "missing label", content: `node "a" { type = "policy" }`, wantErr: "failed to decode HCL file"},
		{name: "properties not an object", content: `node "a" {
  label      = "A"
  properties = "flat"
}`, wantErr: `node "a" properties`},
		{name: "dangling relationship", content: `relationship "a" "b" {}`, wantErr: "invalid configuration"},
		{name: "bad level", content: `log { level = "loud" }`, wantErr: "invalid configuration"},
		{name: "unset env", content: `server { listen = env.NOPE }`, wantErr: "failed to decode HCL file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := testutil.WriteFiles(t, map[string]string{"main.hcl": tc.content})
			_, err := newTestLoader().Load(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
