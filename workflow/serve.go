package workflow

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ServeOption customizes the callback endpoint
type ServeOption func(*server)

// WithServeLogger sets the endpoint logger
func WithServeLogger(l Logger) ServeOption {
	return func(s *server) {
		if l != nil {
			s.logger = l
		}
	}
}

type server struct {
	handler Handler
	logger  Logger
}

// Serve adapts a workflow Handler to the POST endpoint the orchestrator
// calls back into, once per resumed step. A handler step error produces a
// 500 so the orchestrator's retry policy engages; a suspension or a normal
// return produces a 200 with the updated checkpoint log.
func Serve(h Handler, opts ...ServeOption) router.HandlerFunc {
	s := &server{handler: h, logger: nopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return func(ctx router.Context) error {
		req := new(CallbackRequest)
		if err := ctx.Bind(req); err != nil {
			s.logger.Error("workflow callback decode failed: %v", err)
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "malformed workflow callback",
			})
		}

		wctx := NewContext(ctx.Context(), req.RunID, req.Payload, req.Steps)

		err := s.handler(wctx)
		switch {
		case err == nil:
			return ctx.JSON(http.StatusOK, wctx.Response(true))
		case goerrors.Is(err, ErrSuspended):
			return ctx.JSON(http.StatusOK, wctx.Response(false))
		default:
			s.logger.Error("workflow step failed run=%s: %v", req.RunID, err)
			return ctx.JSON(http.StatusInternalServerError, map[string]string{
				"run_id": req.RunID,
				"error":  err.Error(),
			})
		}
	}
}
