package config

import (
	"errors"
	"fmt"
	"slices"
)

// Defaults used when a setting is not configured.
const (
	DefaultListen          = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMaxCommands     = 100
	DefaultMaxTransactions = 1000
)

// Model is the unified representation of the whole configuration.
type Model struct {
	Server   Server
	Log      Log
	History  History
	Snapshot Snapshot
	Seed     Seed
}

// Server configures the HTTP surface.
type Server struct {
	Listen string
}

// Log configures the structured logger.
type Log struct {
	Level  string
	Format string
}

// History bounds the command history and the transaction log.
type History struct {
	MaxCommands     int
	MaxTransactions int
}

// Snapshot points at an optional on-disk graph snapshot. An empty Path
// disables snapshots.
type Snapshot struct {
	Path string
}

// Seed is a graph to create when the service starts.
type Seed struct {
	Nodes         []SeedNode
	Relationships []SeedRelationship
}

// SeedNode is a node declared in configuration. Ref names it for
// relationships in the same configuration.
type SeedNode struct {
	Ref         string
	Type        string
	Label       string
	Description string
	Properties  map[string]any
}

// SeedRelationship connects two seed nodes by ref.
type SeedRelationship struct {
	From   string
	To     string
	Kind   string
	Weight *float64
	Meta   map[string]any
}

// Default returns a Model with every default applied.
func Default() *Model {
	return &Model{
		Server:  Server{Listen: DefaultListen},
		Log:     Log{Level: DefaultLogLevel, Format: DefaultLogFormat},
		History: History{MaxCommands: DefaultMaxCommands, MaxTransactions: DefaultMaxTransactions},
	}
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the model for values the service cannot start with.
// Every problem is reported, not only the first.
func (m *Model) Validate() error {
	var errs []error
	if m.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must not be empty"))
	}
	if !slices.Contains(logLevels, m.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of %v", m.Log.Level, logLevels))
	}
	if !slices.Contains(logFormats, m.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q is not one of %v", m.Log.Format, logFormats))
	}
	if m.History.MaxCommands <= 0 {
		errs = append(errs, fmt.Errorf("history.max_commands must be positive, got %d", m.History.MaxCommands))
	}
	if m.History.MaxTransactions <= 0 {
		errs = append(errs, fmt.Errorf("history.max_transactions must be positive, got %d", m.History.MaxTransactions))
	}

	refs := make(map[string]struct{}, len(m.Seed.Nodes))
	for _, n := range m.Seed.Nodes {
		if _, dup := refs[n.Ref]; dup {
			errs = append(errs, fmt.Errorf("node %q is declared more than once", n.Ref))
		}
		refs[n.Ref] = struct{}{}
	}
	for _, r := range m.Seed.Relationships {
		for _, end := range []string{r.From, r.To} {
			if _, ok := refs[end]; !ok {
				errs = append(errs, fmt.Errorf("relationship %q -> %q references unknown node %q", r.From, r.To, end))
			}
		}
	}
	return errors.Join(errs...)
}
