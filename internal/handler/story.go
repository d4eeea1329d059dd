package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/playback"
)

// StoryHandler drives a playback controller.
type StoryHandler struct {
	controller *playback.Controller
	// chapters is cleared once a free-form story replaces a chapter.
	chapters *gamestate.ChapterLog
}

// NewStoryHandler creates a StoryHandler. chapters may be nil.
func NewStoryHandler(controller *playback.Controller, chapters *gamestate.ChapterLog) *StoryHandler {
	return &StoryHandler{controller: controller, chapters: chapters}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// Register mounts the story routes.
func (h *StoryHandler) Register(r gin.IRouter) {
	story := r.Group("/api/story")
	story.POST("/generate", h.generate)
	story.POST("/advance", h.advance)
	story.POST("/presented", h.presented)
	story.POST("/choices/:index", h.choose)
	story.GET("/state", h.state)
	story.DELETE("/context", h.clearContext)
	story.POST("/reset", h.reset)
}

func (h *StoryHandler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.controller.Generate(c.Request.Context(), strings.TrimSpace(req.Prompt))
	if !errorsIs(err, playback.ErrBusy, playback.ErrEmptyPrompt) {
		h.chapters.Clear()
	}
	if err != nil {
		slog.Warn("story generation failed", "error", err.Error())
	}
	writeState(c, statusFor(err), h.controller.Snapshot(), err)
}

func (h *StoryHandler) advance(c *gin.Context) {
	err := h.controller.Advance()
	writeState(c, statusFor(err), h.controller.Snapshot(), err)
}

func (h *StoryHandler) presented(c *gin.Context) {
	h.controller.PresentationDone()
	writeState(c, http.StatusOK, h.controller.Snapshot(), nil)
}

// choose takes a 1-based choice number.
func (h *StoryHandler) choose(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("index"))
	if err != nil || n < 1 {
		err = fmt.Errorf("%w: %s", playback.ErrInvalidChoice, c.Param("index"))
		writeState(c, http.StatusBadRequest, h.controller.Snapshot(), err)
		return
	}
	_, err = h.controller.Select(n - 1)
	writeState(c, statusFor(err), h.controller.Snapshot(), err)
}

func (h *StoryHandler) state(c *gin.Context) {
	writeState(c, http.StatusOK, h.controller.Snapshot(), nil)
}

func (h *StoryHandler) clearContext(c *gin.Context) {
	if err := h.controller.ClearContext(c.Request.Context()); err != nil {
		writeState(c, http.StatusInternalServerError, h.controller.Snapshot(), err)
		return
	}
	writeState(c, http.StatusOK, h.controller.Snapshot(), nil)
}

func (h *StoryHandler) reset(c *gin.Context) {
	h.controller.ResetStory()
	h.chapters.Clear()
	writeState(c, http.StatusOK, h.controller.Snapshot(), nil)
}

func errorsIs(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
