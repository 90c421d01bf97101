package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/coordinator"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fault"
)

// Server serves the graph API.
type Server struct {
	coord  *coordinator.Coordinator
	logger *slog.Logger
	app    *fiber.App
}

// New builds a Server and registers every route.
func New(coord *coordinator.Coordinator, logger *slog.Logger) *Server {
	s := &Server{coord: coord, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:      "graphmut",
		ErrorHandler: s.handleError,
	})
	s.app.Use(s.requestLogger)
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called. ready, when set, is
// called with the bound address once the listener is open.
func (s *Server) Listen(addr string, ready func(net.Addr)) error {
	s.logger.Debug("HTTP server starting.", "address", addr)
	return s.app.Listen(addr, fiber.ListenConfig{
		DisableStartupMessage: true,
		ListenerAddrFunc: func(bound net.Addr) {
			s.logger.Info("HTTP server listening.", "address", bound.String())
			if ready != nil {
				ready(bound)
			}
		},
	})
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server.")
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed.", "error", err)
		return err
	}
	s.logger.Debug("HTTP server shut down gracefully.")
	return nil
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	s.app.Get("/nodes", s.listNodes)
	s.app.Post("/nodes", s.createNode)
	s.app.Get("/nodes/:id", s.getNode)
	s.app.Patch("/nodes/:id", s.updateNode)
	s.app.Delete("/nodes/:id", s.removeNode)

	s.app.Get("/relationships", s.listRelationships)
	s.app.Post("/relationships", s.createRelationship)
	s.app.Get("/relationships/:id", s.getRelationship)
	s.app.Delete("/relationships/:id", s.removeRelationship)

	s.app.Post("/batch", s.batch)

	s.app.Post("/undo", s.undo)
	s.app.Post("/redo", s.redo)
	s.app.Get("/history", s.history)
	s.app.Get("/stats", s.stats)
	s.app.Get("/transactions", s.transactions)
}

// requestLogger attaches a request-scoped logger to the request context
// and logs the outcome once the handler chain has finished.
func (s *Server) requestLogger(c fiber.Ctx) error {
	start := time.Now()
	logger := s.logger.With("request_id", uuid.NewString(), "method", c.Method(), "path", c.Path())
	c.SetContext(ctxlog.WithLogger(c.Context(), logger))

	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	logger.Debug("Request handled.", "status", c.Response().StatusCode(), "duration", time.Since(start))
	return nil
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	status := statusFor(err)
	logger := ctxlog.FromContext(c.Context())
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed.", "status", status, "error", err)
	} else {
		logger.Debug("Request rejected.", "status", status, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kindFor(err),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		return fiber.StatusNotFound
	case fault.KindAlreadyExists, fault.KindIllegalState:
		return fiber.StatusConflict
	case fault.KindInvalid:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func kindFor(err error) string {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return "http"
	}
	return fault.KindOf(err).String()
}

// paramID parses the :id route parameter.
func paramID(c fiber.Ctx) (uuid.UUID, error) {
	raw := c.Params("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fault.New(fault.KindInvalid, c.Route().Path, uuid.Nil, "%q is not a valid id", raw)
	}
	return id, nil
}

// bind decodes the JSON body into v.
func bind(c fiber.Ctx, v any) error {
	if err := c.Bind().JSON(v); err != nil {
		return fault.Wrap(fault.KindInvalid, c.Route().Path, uuid.Nil, err)
	}
	return nil
}
