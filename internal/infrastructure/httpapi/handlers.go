package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/usecase"
)

// StepRunner runs pipeline steps for single items.
type StepRunner interface {
	Run(ctx context.Context, id int64, step domain.Step) (domain.Outcome, error)
	Advance(ctx context.Context, id int64) (domain.Outcome, error)
}

// BatchDrainer processes the items waiting for a step.
type BatchDrainer interface {
	Drain(ctx context.Context, step domain.Step) (usecase.DrainReport, error)
}

// Handler serves the trigger API.
type Handler struct {
	store    ports.IngestStore
	pipeline StepRunner
	runner   BatchDrainer
}

// NewHandler wires the handler. runner may be nil to disable /drain.
func NewHandler(store ports.IngestStore, pipeline StepRunner, runner BatchDrainer) *Handler {
	return &Handler{store: store, pipeline: pipeline, runner: runner}
}

type createItemRequest struct {
	TargetType string         `json:"target_type" binding:"required"`
	Payload    map[string]any `json:"payload"`
	Meta       map[string]any `json:"meta"`
}

type itemResponse struct {
	ID         int64          `json:"id"`
	TargetType string         `json:"target_type"`
	Stage      string         `json:"stage"`
	Payload    map[string]any `json:"payload"`
	Meta       map[string]any `json:"meta"`
	CreatedAt  string         `json:"created_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
}

type outcomeResponse struct {
	ItemID  int64  `json:"item_id"`
	Outcome string `json:"outcome"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	PostID  int64  `json:"post_id,omitempty"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateItem accepts an upstream item at stage new.
func (h *Handler) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.store.Create(c.Request.Context(), domain.IngestItem{
		TargetType: domain.TargetType(req.TargetType),
		Stage:      domain.StageNew,
		Payload:    domain.Payload(req.Payload),
		Meta:       req.Meta,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "stage": domain.StageNew})
}

// GetItem returns the stored item with its meta fields.
func (h *Handler) GetItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	item, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := itemResponse{
		ID:         item.ID,
		TargetType: string(item.TargetType),
		Stage:      string(item.Stage),
		Payload:    item.Payload,
		Meta:       item.Meta,
	}
	if !item.CreatedAt.IsZero() {
		resp.CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339)
		resp.UpdatedAt = item.UpdatedAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// RunStep runs the named step for one item.
func (h *Handler) RunStep(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	step, err := domain.ParseStep(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.pipeline.Run(c.Request.Context(), id, step)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcome(id, out))
}

// Advance runs whatever step follows the item's stage.
func (h *Handler) Advance(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	out, err := h.pipeline.Advance(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcome(id, out))
}

// Drain processes one batch for a step.
func (h *Handler) Drain(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "batch runner disabled"})
		return
	}
	step, err := domain.ParseStep(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.runner.Drain(c.Request.Context(), step)
	if err != nil {
		writeError(c, err)
		return
	}
	outcomes := make(map[string]int, len(report.Outcomes))
	for k, v := range report.Outcomes {
		outcomes[string(k)] = v
	}
	c.JSON(http.StatusOK, gin.H{
		"step":      report.Step,
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"outcomes":  outcomes,
	})
}

func itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

func toOutcome(id int64, out domain.Outcome) outcomeResponse {
	return outcomeResponse{
		ItemID:  id,
		Outcome: string(out.Kind),
		Stage:   string(out.Stage),
		Message: out.Message,
		PostID:  out.PostID,
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, domain.ErrStageConflict),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, usecase.ErrNothingToRun):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
