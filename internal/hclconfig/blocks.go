package hclconfig

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may contain.
type fileRoot struct {
	Server        *serverBlock        `hcl:"server,block"`
	Log           *logBlock           `hcl:"log,block"`
	History       *historyBlock       `hcl:"history,block"`
	Snapshot      *snapshotBlock      `hcl:"snapshot,block"`
	Nodes         []*nodeBlock        `hcl:"node,block"`
	Relationships []*relationshipBlock `hcl:"relationship,block"`
	Remain        hcl.Body            `hcl:",remain"`
}

type serverBlock struct {
	Listen *string `hcl:"listen,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type historyBlock struct {
	MaxCommands     *int `hcl:"max_commands,optional"`
	MaxTransactions *int `hcl:"max_transactions,optional"`
}

type snapshotBlock struct {
	Path string `hcl:"path"`
}

type nodeBlock struct {
	Ref         string         `hcl:"ref,label"`
	Type        *string        `hcl:"type,optional"`
	Label       string         `hcl:"label"`
	Description *string        `hcl:"description,optional"`
	Properties  hcl.Expression `hcl:"properties,optional"`
}

type relationshipBlock struct {
	From   string         `hcl:"from,label"`
	To     string         `hcl:"to,label"`
	Kind   *string        `hcl:"kind,optional"`
	Weight *float64       `hcl:"weight,optional"`
	Meta   hcl.Expression `hcl:"meta,optional"`
}
