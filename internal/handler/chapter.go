package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

// ChapterService generates or loads chapters.
type ChapterService interface {
	GenerateOrLoad(ctx context.Context, chapter int, state gamestate.Snapshot) (*agent.ChapterResult, error)
	Summarize(ctx context.Context, chapter int, seq record.Sequence, choices []string) (string, error)
}

// ChapterHandler loads chapters into the playback controller and exposes
// the game state.
type ChapterHandler struct {
	controller *playback.Controller
	chapters   ChapterService
	tracker    *gamestate.Tracker
	log        *gamestate.ChapterLog
}

// NewChapterHandler creates a ChapterHandler. The log must also receive the
// controller's selections.
func NewChapterHandler(controller *playback.Controller, chapters ChapterService, tracker *gamestate.Tracker, log *gamestate.ChapterLog) *ChapterHandler {
	return &ChapterHandler{controller: controller, chapters: chapters, tracker: tracker, log: log}
}

type chapterResponse struct {
	StateResponse
	Chapter   int      `json:"chapter"`
	CacheKey  string   `json:"cache_key"`
	FromCache bool     `json:"from_cache"`
	CGs       []string `json:"cgs,omitempty"`
}

// Register mounts the chapter and game-state routes.
func (h *ChapterHandler) Register(r gin.IRouter) {
	r.POST("/api/chapters/:number", h.loadChapter)
	r.POST("/api/chapters/:number/complete", h.completeChapter)
	r.GET("/api/game/state", h.gameState)
}

func (h *ChapterHandler) loadChapter(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid chapter %q", c.Param("number"))})
		return
	}
	if h.chapters == nil || h.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chapter generation not configured"})
		return
	}

	// 生成中不加载章节
	if snap := h.controller.Snapshot(); snap.State == playback.Generating {
		writeState(c, http.StatusConflict, snap, playback.ErrBusy)
		return
	}

	ctx := c.Request.Context()
	result, err := h.chapters.GenerateOrLoad(ctx, number, h.tracker.Snapshot())
	if err != nil {
		slog.Error("chapter generation failed", "chapter", number, "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	status := fmt.Sprintf("Chapter %d loaded. %d dialogue entries.", number, len(result.Records))
	if err := h.controller.LoadSequence(result.Records, playback.BranchByNextID, status); err != nil {
		writeState(c, statusFor(err), h.controller.Snapshot(), err)
		return
	}

	h.log.Start(number, result.Records)

	resp := chapterResponse{
		StateResponse: newStateResponse(h.controller.Snapshot()),
		Chapter:       number,
		CacheKey:      result.Key,
		FromCache:     result.FromCache,
	}
	for _, cg := range result.CGs {
		if err := h.tracker.UnlockCG(ctx, cg.ID); err != nil {
			slog.Warn("failed to record cg", "cg_id", cg.ID, "error", err.Error())
		}
		resp.CGs = append(resp.CGs, cg.ID)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChapterHandler) gameState(c *gin.Context) {
	if h.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game state not configured"})
		return
	}
	snap := h.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":      snap,
		"prompt":     snap.ToPromptString(),
		"cache_hash": snap.CacheHash(),
	})
}

// completeChapter summarizes the played chapter and moves the game state
// to the next one.
func (h *ChapterHandler) completeChapter(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid chapter %q", c.Param("number"))})
		return
	}
	if h.chapters == nil || h.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chapter generation not configured"})
		return
	}

	current, seq, choices := h.log.Current()
	if current != number {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("chapter %d is not loaded", number)})
		return
	}

	ctx := c.Request.Context()
	summary, err := h.chapters.Summarize(ctx, number, seq, choices)
	if err != nil {
		slog.Warn("chapter summary failed", "chapter", number, "error", err.Error())
		summary = ""
	}
	if err := h.tracker.CompleteChapter(ctx, number, summary); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.log.Clear()
	snap := h.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{"chapter": number, "summary": summary, "next_chapter": snap.CurrentChapter})
}
