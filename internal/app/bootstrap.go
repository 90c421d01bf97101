package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/graphmut/internal/config"
	"github.com/specialistvlad/graphmut/internal/coordinator"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/snapshot"
)

// bootstrap fills the empty graph. A non-empty snapshot wins over the seed
// graph; otherwise the seed is applied as one transaction. Neither ends up
// in the undo history. The opened snapshot store, if any, is returned for
// the caller to save to and close.
func (a *App) bootstrap(ctx context.Context) (*snapshot.Store, error) {
	logger := ctxlog.FromContext(ctx)

	var snaps *snapshot.Store
	if path := a.config.Snapshot.Path; path != "" {
		s, err := snapshot.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		g, err := s.Load(ctx)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if !g.Empty() {
			if err := g.Restore(ctx, a.store); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("failed to restore snapshot: %w", err)
			}
			logger.Info("Graph restored from snapshot.",
				"nodes", len(g.Nodes),
				"relationships", len(g.Relationships),
				"saved_at", g.SavedAt,
			)
			return s, nil
		}
		snaps = s
	}

	if err := a.seed(ctx); err != nil {
		if snaps != nil {
			_ = snaps.Close()
		}
		return nil, err
	}
	return snaps, nil
}

func (a *App) seed(ctx context.Context) error {
	muts := seedMutations(a.config.Seed)
	if len(muts) == 0 {
		ctxlog.FromContext(ctx).Debug("No seed graph configured.")
		return nil
	}
	res, err := a.coord.ApplyBatch(ctx, map[string]any{"source": "seed"}, muts)
	if err != nil {
		return fmt.Errorf("failed to apply seed graph: %w", err)
	}
	a.coord.Commands().Clear()

	ctxlog.FromContext(ctx).Info("Seed graph applied.", "nodes", len(res.Nodes), "relationships", len(res.Relationships))
	return nil
}

// seedMutations translates configured seed entities into a batch. Nodes
// are addressed by their configured ref.
func seedMutations(seed config.Seed) []coordinator.Mutation {
	muts := make([]coordinator.Mutation, 0, len(seed.Nodes)+len(seed.Relationships))
	for _, n := range seed.Nodes {
		muts = append(muts, coordinator.Mutation{
			Op:  coordinator.OpCreateNode,
			Ref: n.Ref,
			Node: coordinator.NodeInput{
				Type:        entity.NodeType(n.Type),
				Label:       n.Label,
				Description: n.Description,
				Properties:  n.Properties,
			},
		})
	}
	for _, r := range seed.Relationships {
		muts = append(muts, coordinator.Mutation{
			Op:     coordinator.OpCreateRelationship,
			From:   r.From,
			To:     r.To,
			Kind:   r.Kind,
			Weight: r.Weight,
			Meta:   r.Meta,
		})
	}
	return muts
}
