package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketPulse/internal/jobs"
	"MarketPulse/internal/logger"
	"MarketPulse/internal/runner"
	"MarketPulse/internal/universe"
)

// BatchRunner is the part of runner.Runner the handlers use.
type BatchRunner interface {
	Universe() *universe.Universe
	Run(ctx context.Context, jt jobs.Type, symbols []string, trigger string) (*runner.BatchResult, error)
	Submit(ctx context.Context, jt jobs.Type, symbols []string) error
	Status(jt jobs.Type) (runner.Status, error)
	Statuses() []runner.Status
}

// Schedule controls the recurring batch trigger.
type Schedule interface {
	Start() (bool, error)
	Stop() bool
	Running() bool
	Interval() time.Duration
}

// BatchRequest is the optional body of the run and start routes.
type BatchRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=100,dive,required,max=16"`
}

// Handler serves the worker's HTTP routes.
type Handler struct {
	runner   BatchRunner
	schedule Schedule
	log      *logger.Logger
}

// NewHandler creates the route handler.
func NewHandler(r BatchRunner, s Schedule, log *logger.Logger) *Handler {
	return &Handler{runner: r, schedule: s, log: log}
}

// RegisterRoutes mounts all worker routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	e.POST("/run-ingest", h.runSync(jobs.Ingest))
	e.POST("/run-forecast", h.runSync(jobs.Forecast))
	e.POST("/start-ingest", h.runAsync(jobs.Ingest))
	e.POST("/start-forecast", h.runAsync(jobs.Forecast))

	e.POST("/schedule", h.StartSchedule)
	e.POST("/schedule/stop", h.StopSchedule)

	e.GET("/batches", h.Batches)
	e.GET("/batches/:job", h.Batch)
}

// Health reports liveness and whether the recurring trigger is active.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"service":           "worker-node",
		"scheduler_running": h.schedule.Running(),
	})
}

func (h *Handler) runSync(jt jobs.Type) echo.HandlerFunc {
	return func(c echo.Context) error {
		symbols, errs := h.symbols(c)
		if errs != nil {
			return validationResponse(c, errs)
		}
		res, err := h.runner.Run(c.Request().Context(), jt, symbols, runner.TriggerManual)
		if err != nil {
			return h.batchError(c, jt, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "done",
			"job":       jt,
			"details":   res.Details,
			"steps":     res.Steps,
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
		})
	}
}

func (h *Handler) runAsync(jt jobs.Type) echo.HandlerFunc {
	return func(c echo.Context) error {
		symbols, errs := h.symbols(c)
		if errs != nil {
			return validationResponse(c, errs)
		}
		if err := h.runner.Submit(c.Request().Context(), jt, symbols); err != nil {
			return h.batchError(c, jt, err)
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"status": "accepted",
			"job":    jt,
		})
	}
}

// StartSchedule enables the recurring trigger.
func (h *Handler) StartSchedule(c echo.Context) error {
	started, err := h.schedule.Start()
	if err != nil {
		h.log.Error("start schedule", logger.Error(err))
		return errorResponse(c, InternalError("could not start schedule").WithError(err))
	}
	status := "scheduled"
	if !started {
		status = "already_running"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   status,
		"interval": h.schedule.Interval().String(),
	})
}

// StopSchedule disables the recurring trigger. In-flight batches finish.
func (h *Handler) StopSchedule(c echo.Context) error {
	status := "stopped"
	if !h.schedule.Stop() {
		status = "not_running"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) Batches(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"batches": h.runner.Statuses()})
}

func (h *Handler) Batch(c echo.Context) error {
	jt, err := jobs.ParseType(c.Param("job"))
	if err != nil {
		return errorResponse(c, NotFoundError(err.Error()))
	}
	st, err := h.runner.Status(jt)
	if err != nil {
		return errorResponse(c, NotFoundError(err.Error()))
	}
	return c.JSON(http.StatusOK, st)
}

// symbols reads the optional body and narrows it to the universe. A nil
// result means the whole universe.
func (h *Handler) symbols(c echo.Context) ([]string, []ValidationError) {
	var req BatchRequest
	if errs := readAndValidate(c, &req); errs != nil {
		return nil, errs
	}
	if len(req.Symbols) == 0 {
		return nil, nil
	}
	out, err := h.runner.Universe().Subset(req.Symbols)
	if err != nil {
		return nil, []ValidationError{{Code: "ERR_UNKNOWN_SYMBOL", Field: "symbols", Message: err.Error()}}
	}
	return out, nil
}

func (h *Handler) batchError(c echo.Context, jt jobs.Type, err error) error {
	switch {
	case errors.Is(err, runner.ErrBatchInFlight):
		return errorResponse(c, ConflictError(string(jt)+" batch already running").WithError(err))
	case errors.Is(err, runner.ErrUnknownJob):
		return errorResponse(c, NotFoundError(err.Error()))
	default:
		h.log.Error("batch failed to start", logger.String("job", string(jt)), logger.Error(err))
		return errorResponse(c, InternalError("batch failed to start").WithError(err))
	}
}
