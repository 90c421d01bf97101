package httpapi

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/coordinator"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
)

const defaultTransactionLimit = 20

func (s *Server) health(c fiber.Ctx) error {
	ctx := c.Context()
	ctxlog.FromContext(ctx).Debug("Health check endpoint hit.", "remote_addr", c.IP())
	o := s.coord.Overview(ctx)
	return c.JSON(fiber.Map{
		"status":        "ok",
		"nodes":         o.Nodes,
		"relationships": o.Relationships,
	})
}

func (s *Server) listNodes(c fiber.Ctx) error {
	typ := entity.NodeType(c.Query("type"))
	if typ != "" && !typ.Valid() {
		return fault.New(fault.KindInvalid, "ListNodes", uuid.Nil, "unknown node type %q", typ)
	}
	return c.JSON(s.coord.ListNodes(c.Context(), typ))
}

func (s *Server) createNode(c fiber.Ctx) error {
	var in coordinator.NodeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	n, err := s.coord.CreateNode(c.Context(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

func (s *Server) getNode(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	n, err := s.coord.GetNode(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (s *Server) updateNode(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var patch coordinator.NodePatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	n, err := s.coord.UpdateNode(c.Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (s *Server) removeNode(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := s.coord.RemoveNode(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listRelationships(c fiber.Ctx) error {
	nodeID := uuid.Nil
	if raw := c.Query("node"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fault.New(fault.KindInvalid, "ListRelationships", uuid.Nil, "%q is not a valid node id", raw)
		}
		nodeID = id
	}
	return c.JSON(s.coord.ListRelationships(c.Context(), nodeID))
}

func (s *Server) createRelationship(c fiber.Ctx) error {
	var in coordinator.RelationshipInput
	if err := bind(c, &in); err != nil {
		return err
	}
	r, err := s.coord.CreateRelationship(c.Context(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (s *Server) getRelationship(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	r, err := s.coord.GetRelationship(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(r)
}

func (s *Server) removeRelationship(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := s.coord.RemoveRelationship(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type batchRequest struct {
	Metadata  map[string]any         `json:"metadata,omitempty"`
	Mutations []coordinator.Mutation `json:"mutations"`
}

func (s *Server) batch(c fiber.Ctx) error {
	var req batchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if len(req.Mutations) == 0 {
		return fault.New(fault.KindInvalid, "ApplyBatch", uuid.Nil, "mutations must not be empty")
	}
	res, err := s.coord.ApplyBatch(c.Context(), req.Metadata, req.Mutations)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) undo(c fiber.Ctx) error {
	applied := s.coord.Undo(c.Context())
	return c.JSON(s.stepResult(applied))
}

func (s *Server) redo(c fiber.Ctx) error {
	applied := s.coord.Redo(c.Context())
	return c.JSON(s.stepResult(applied))
}

func (s *Server) stepResult(applied bool) fiber.Map {
	st := s.coord.Statistics()
	return fiber.Map{"applied": applied, "can_undo": st.CanUndo, "can_redo": st.CanRedo}
}

func (s *Server) history(c fiber.Ctx) error {
	cmds := s.coord.Commands()
	return c.JSON(fiber.Map{
		"history":  cmds.History(),
		"undo":     cmds.UndoStack(),
		"redo":     cmds.RedoStack(),
		"failures": cmds.Failures(),
	})
}

func (s *Server) stats(c fiber.Ctx) error {
	return c.JSON(s.coord.Overview(c.Context()))
}

func (s *Server) transactions(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", defaultTransactionLimit)
	if limit <= 0 {
		return fault.New(fault.KindInvalid, "RecentTransactions", uuid.Nil, "limit must be positive")
	}
	return c.JSON(fiber.Map{
		"stats":        s.coord.TransactionStats(),
		"transactions": s.coord.RecentTransactions(limit),
	})
}
