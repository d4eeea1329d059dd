package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

// ImageService defines the interface for image generation services.
type ImageService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CGHandler renders CG images on demand for the line being played.
type CGHandler struct {
	controller *playback.Controller
	images     ImageService
	tracker    *gamestate.Tracker
}

// NewCGHandler creates a CGHandler. tracker may be nil.
func NewCGHandler(controller *playback.Controller, images ImageService, tracker *gamestate.Tracker) *CGHandler {
	return &CGHandler{controller: controller, images: images, tracker: tracker}
}

type cgRequest struct {
	// Prompt renders a free image instead of the current line's CG.
	Prompt string `json:"prompt"`
}

type cgResponse struct {
	ID      string `json:"cg_id,omitempty"`
	Title   string `json:"title,omitempty"`
	DataURL string `json:"data_url"`
}

func (h *CGHandler) Register(r gin.IRouter) {
	r.POST("/api/story/cg", h.render)
}

func (h *CGHandler) render(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image generation not configured"})
		return
	}
	var req cgRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		dataURL, err := h.images.Generate(ctx, prompt)
		if err != nil {
			slog.Error("failed to generate image", "error", err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cgResponse{DataURL: dataURL})
		return
	}

	rec := h.controller.Snapshot().Current
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"error": playback.ErrNotPlaying.Error()})
		return
	}
	if !rec.HasCG() {
		c.JSON(http.StatusNotFound, gin.H{"error": "current line has no cg"})
		return
	}
	cgPrompt, err := agent.CGPromptFor(rec)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	dataURL, err := h.images.Generate(ctx, cgPrompt)
	if err != nil {
		slog.Error("failed to generate cg", "cg_id", rec.Get(record.FieldCGID), "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	id := rec.Get(record.FieldCGID)
	if h.tracker != nil {
		if err := h.tracker.UnlockCG(ctx, id); err != nil {
			slog.Warn("failed to record cg", "cg_id", id, "error", err.Error())
		}
	}
	c.JSON(http.StatusOK, cgResponse{ID: id, Title: rec.Get(record.FieldCGTitle), DataURL: dataURL})
}
