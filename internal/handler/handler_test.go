package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	seq record.Sequence
	err error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (record.Sequence, error) {
	return g.seq, g.err
}

// blockingGenerator holds Generate until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	seq     record.Sequence
}

func (g *blockingGenerator) Generate(ctx context.Context, prompt string) (record.Sequence, error) {
	close(g.started)
	<-g.release
	return g.seq, nil
}

type fakeChapterService struct {
	result    *agent.ChapterResult
	err       error
	loads     int
	summaries int
	choices   []string
}

func (s *fakeChapterService) GenerateOrLoad(ctx context.Context, chapter int, state gamestate.Snapshot) (*agent.ChapterResult, error) {
	s.loads++
	return s.result, s.err
}

func (s *fakeChapterService) Summarize(ctx context.Context, chapter int, seq record.Sequence, choices []string) (string, error) {
	s.summaries++
	s.choices = choices
	return "They met.", nil
}

func storyLine(id int, choices ...string) *record.FieldRecord {
	b := record.NewBuilder().SetInt(record.FieldID, id).Set(record.FieldNameTag, "Hans").Set(record.FieldLineENG, "Hello.")
	for n, text := range choices {
		b.Set(record.ChoiceField(n+1, record.LangEnglish), text)
	}
	return b.Finalize()
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func newStoryRouter(gen playback.Generator) (*gin.Engine, *playback.Controller) {
	controller := playback.NewController(gen, playback.ControllerOptions{})
	return NewRouter(NewStoryHandler(controller, nil)), controller
}

func TestGenerateRoute(t *testing.T) {
	r, _ := newStoryRouter(&fakeGenerator{seq: record.Sequence{storyLine(10000), storyLine(10001, "Yes", "No")}})

	w, body := do(t, r, http.MethodPost, "/api/story/generate", `{"prompt":"a walk"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["state"] != "Playing" || body["total"].(float64) != 2 {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["status"] != "Story generated! 2 dialogue entries created." {
		t.Fatalf("unexpected status %v", body["status"])
	}
	current := body["current"].(map[string]any)
	if current["ID"] != "10000" || current["NameTag"] != "Hans" {
		t.Fatalf("unexpected current record: %v", current)
	}
}

func TestGenerateRouteErrors(t *testing.T) {
	cases := []struct {
		name string
		gen  *fakeGenerator
		body string
		code int
	}{
		{name: "empty prompt", gen: &fakeGenerator{}, body: `{"prompt":"  "}`, code: http.StatusBadRequest},
		{name: "bad json", gen: &fakeGenerator{}, body: `{`, code: http.StatusBadRequest},
		{name: "remote failure", gen: &fakeGenerator{err: errors.New("boom")}, body: `{"prompt":"go"}`, code: http.StatusBadGateway},
		{name: "empty sequence", gen: &fakeGenerator{}, body: `{"prompt":"go"}`, code: http.StatusBadGateway},
	}
	for _, tc := range cases {
		r, _ := newStoryRouter(tc.gen)
		w, body := do(t, r, http.MethodPost, "/api/story/generate", tc.body)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d (%v)", tc.name, tc.code, w.Code, body)
		}
		if body["error"] == nil {
			t.Fatalf("%s: expected error in body", tc.name)
		}
	}
}

func TestPlaybackRoutes(t *testing.T) {
	r, _ := newStoryRouter(&fakeGenerator{seq: record.Sequence{storyLine(1), storyLine(2, "Yes", "No"), storyLine(3)}})
	do(t, r, http.MethodPost, "/api/story/generate", `{"prompt":"go"}`)

	if w, body := do(t, r, http.MethodPost, "/api/story/advance", ""); w.Code != http.StatusOK || body["index"].(float64) != 1 {
		t.Fatalf("unexpected advance: %d %v", w.Code, body)
	}
	w, body := do(t, r, http.MethodPost, "/api/story/presented", "")
	if w.Code != http.StatusOK || body["state"] != "AwaitingChoice" {
		t.Fatalf("unexpected presented: %d %v", w.Code, body)
	}
	if choices := body["choices"].([]any); len(choices) != 2 {
		t.Fatalf("expected 2 choices, got %v", choices)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/story/advance", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a choice is pending, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/story/choices/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad index, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/story/choices/3", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty choice, got %d", w.Code)
	}
	if w, body := do(t, r, http.MethodPost, "/api/story/choices/2", ""); w.Code != http.StatusOK || body["index"].(float64) != 2 {
		t.Fatalf("unexpected choice: %d %v", w.Code, body)
	}
	_, body = do(t, r, http.MethodPost, "/api/story/advance", "")
	if body["state"] != "Ended" || body["status"] != playback.StatusSegmentEnded {
		t.Fatalf("unexpected end: %v", body)
	}

	if _, body := do(t, r, http.MethodDelete, "/api/story/context", ""); body["status"] != playback.StatusCleared {
		t.Fatalf("unexpected clear: %v", body)
	}
	if _, body := do(t, r, http.MethodPost, "/api/story/reset", ""); body["state"] != "Idle" {
		t.Fatalf("unexpected reset: %v", body)
	}
	if w, body := do(t, r, http.MethodGet, "/api/story/state", ""); w.Code != http.StatusOK || body["status"] != playback.StatusReady {
		t.Fatalf("unexpected state: %d %v", w.Code, body)
	}
}

func chapterLine(id int, choice string, next int) *record.FieldRecord {
	b := record.NewBuilder().SetInt(record.FieldID, id).Set(record.FieldNameTag, "Sera")
	if choice != "" {
		b.Set(record.ChapterChoiceField(1), choice).SetInt(record.NextField(1), next)
	}
	return b.Finalize()
}

func newChapterService() *fakeChapterService {
	return &fakeChapterService{result: &agent.ChapterResult{
		Key:     "proj_Ch1_00000000",
		Chapter: 1,
		Records: record.Sequence{chapterLine(1000, "Wave", 1002), chapterLine(1001, "", 0), chapterLine(1002, "", 0)},
		CGs:     []agent.GeneratedCG{{ID: "Ch1_CG1"}},
	}}
}

func newChapterRouter(gen playback.Generator, service ChapterService, tracker *gamestate.Tracker) (*gin.Engine, *playback.Controller) {
	log := gamestate.NewChapterLog()
	controller := playback.NewController(gen, playback.ControllerOptions{
		Timeout: time.Minute,
		OnSelect: func(sel playback.Selection) {
			tracker.OnSelect(sel)
			log.Record(sel)
		},
	})
	r := NewRouter(NewStoryHandler(controller, log), NewChapterHandler(controller, service, tracker, log))
	return r, controller
}

func TestChapterRoutes(t *testing.T) {
	service := newChapterService()
	tracker := gamestate.NewTracker(gamestate.Snapshot{CurrentChapter: 1}, nil, "session")
	r, _ := newChapterRouter(nil, service, tracker)

	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1/complete", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before loading, got %d", w.Code)
	}

	w, body := do(t, r, http.MethodPost, "/api/chapters/1", "")
	if w.Code != http.StatusOK || body["state"] != "Playing" || body["cache_key"] != "proj_Ch1_00000000" {
		t.Fatalf("unexpected chapter load: %d %v", w.Code, body)
	}
	if cgs := body["cgs"].([]any); len(cgs) != 1 || cgs[0] != "Ch1_CG1" {
		t.Fatalf("unexpected cgs: %v", body["cgs"])
	}

	do(t, r, http.MethodPost, "/api/story/presented", "")
	if _, body := do(t, r, http.MethodPost, "/api/story/choices/1", ""); body["index"].(float64) != 2 {
		t.Fatalf("expected jump to index 2, got %v", body)
	}

	w, body = do(t, r, http.MethodPost, "/api/chapters/1/complete", "")
	if w.Code != http.StatusOK || body["summary"] != "They met." || body["next_chapter"].(float64) != 2 {
		t.Fatalf("unexpected completion: %d %v", w.Code, body)
	}
	if len(service.choices) != 1 || service.choices[0] != "Wave" {
		t.Fatalf("expected the choice to reach the summarizer, got %v", service.choices)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1/complete", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an already completed chapter, got %d", w.Code)
	}

	w, body = do(t, r, http.MethodGet, "/api/game/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	state := body["state"].(map[string]any)
	if cgs := state["unlocked_cgs"].([]any); len(cgs) != 1 {
		t.Fatalf("expected unlocked cg, got %v", state)
	}
	if !strings.Contains(body["prompt"].(string), "Previous Choices: Wave") {
		t.Fatalf("unexpected prompt: %v", body["prompt"])
	}
}

func TestFreeFormStoryDropsChapterChoices(t *testing.T) {
	service := newChapterService()
	tracker := gamestate.NewTracker(gamestate.Snapshot{CurrentChapter: 1}, nil, "session")
	gen := &fakeGenerator{seq: record.Sequence{storyLine(10000, "Follow the cat", "Go home")}}
	r, _ := newChapterRouter(gen, service, tracker)

	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected chapter load, got %d", w.Code)
	}
	if w, body := do(t, r, http.MethodPost, "/api/story/generate", `{"prompt":"a side story"}`); w.Code != http.StatusOK {
		t.Fatalf("unexpected generate: %d %v", w.Code, body)
	}
	do(t, r, http.MethodPost, "/api/story/presented", "")
	if w, body := do(t, r, http.MethodPost, "/api/story/choices/1", ""); w.Code != http.StatusOK {
		t.Fatalf("unexpected choice: %d %v", w.Code, body)
	}

	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1/complete", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 once a free-form story replaced the chapter, got %d", w.Code)
	}
	if service.summaries != 0 {
		t.Fatalf("free-form choices must not be summarized as chapter choices")
	}

	// 重新加载后日志只含本章选择
	do(t, r, http.MethodPost, "/api/chapters/1", "")
	do(t, r, http.MethodPost, "/api/story/presented", "")
	do(t, r, http.MethodPost, "/api/story/choices/1", "")
	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1/complete", ""); w.Code != http.StatusOK {
		t.Fatalf("expected completion after reload, got %d", w.Code)
	}
	if len(service.choices) != 1 || service.choices[0] != "Wave" {
		t.Fatalf("expected only the chapter choice, got %v", service.choices)
	}
}

func TestChapterLoadRejectedWhileGenerating(t *testing.T) {
	service := newChapterService()
	tracker := gamestate.NewTracker(gamestate.Snapshot{CurrentChapter: 1}, nil, "session")
	gen := &blockingGenerator{
		started: make(chan struct{}),
		release: make(chan struct{}),
		seq:     record.Sequence{storyLine(10000)},
	}
	r, controller := newChapterRouter(gen, service, tracker)

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/story/generate", strings.NewReader(`{"prompt":"a walk"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		done <- w.Code
	}()
	<-gen.started

	w, body := do(t, r, http.MethodPost, "/api/chapters/1", "")
	if w.Code != http.StatusConflict || body["state"] != "Generating" {
		t.Fatalf("expected 409 while generating, got %d %v", w.Code, body)
	}
	if service.loads != 0 {
		t.Fatalf("chapter must not be generated while a story is generating")
	}

	close(gen.release)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("expected the story generation to finish, got %d", code)
	}
	if snap := controller.Snapshot(); snap.State != playback.Playing {
		t.Fatalf("expected the free-form story to play, got %s", snap.State)
	}
}

func TestChapterRouteValidation(t *testing.T) {
	controller := playback.NewController(nil, playback.ControllerOptions{})
	r := NewRouter(NewChapterHandler(controller, nil, nil, nil))
	if w, _ := do(t, r, http.MethodPost, "/api/chapters/zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	failing := &fakeChapterService{err: agent.ErrEmptyChapter}
	tracker := gamestate.NewTracker(gamestate.Snapshot{}, nil, "s")
	r = NewRouter(NewChapterHandler(controller, failing, tracker, nil))
	if w, _ := do(t, r, http.MethodPost, "/api/chapters/1", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := NewRouter()
	if w, body := do(t, r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health: %d %v", w.Code, body)
	}
}

type fakeImages struct {
	prompts []string
	err     error
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "data:image/png;base64,AAAA", f.err
}

func cgLine(id int) *record.FieldRecord {
	return record.NewBuilder().
		SetInt(record.FieldID, id).
		Set(record.FieldLineENG, "The lanterns rise.").
		Set(record.FieldCGID, "cg_lanterns").
		Set(record.FieldCGTitle, "Lanterns").
		Set(record.FieldCGDescription, "Lanterns drifting over the river").
		Finalize()
}

func TestCGRoute(t *testing.T) {
	controller := playback.NewController(&fakeGenerator{seq: record.Sequence{cgLine(1000), storyLine(1001)}}, playback.ControllerOptions{})
	images := &fakeImages{}
	tracker := gamestate.NewTracker(gamestate.Snapshot{}, nil, "test")
	r := NewRouter(NewStoryHandler(controller, nil), NewCGHandler(controller, images, tracker))

	w, body := do(t, r, http.MethodPost, "/api/story/cg", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before playing, got %d %v", w.Code, body)
	}

	do(t, r, http.MethodPost, "/api/story/generate", `{"prompt":"festival"}`)
	w, body = do(t, r, http.MethodPost, "/api/story/cg", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", w.Code, body)
	}
	if body["cg_id"] != "cg_lanterns" || body["title"] != "Lanterns" {
		t.Fatalf("unexpected cg response: %v", body)
	}
	if len(images.prompts) != 1 || !strings.Contains(images.prompts[0], "Lanterns drifting over the river") {
		t.Fatalf("expected cg prompt to carry the description, got %v", images.prompts)
	}
	if got := tracker.Snapshot().UnlockedCGs; len(got) != 1 || got[0] != "cg_lanterns" {
		t.Fatalf("expected cg to be unlocked, got %v", got)
	}

	do(t, r, http.MethodPost, "/api/story/advance", "")
	w, _ = do(t, r, http.MethodPost, "/api/story/cg", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a line without cg, got %d", w.Code)
	}

	w, body = do(t, r, http.MethodPost, "/api/story/cg", `{"prompt":"a cat on the pier"}`)
	if w.Code != http.StatusOK || body["data_url"] != "data:image/png;base64,AAAA" {
		t.Fatalf("expected free image, got %d %v", w.Code, body)
	}
	if images.prompts[len(images.prompts)-1] != "a cat on the pier" {
		t.Fatalf("expected raw prompt, got %v", images.prompts)
	}
}

func TestCGRouteWithoutImages(t *testing.T) {
	controller := playback.NewController(&fakeGenerator{}, playback.ControllerOptions{})
	r := NewRouter(NewCGHandler(controller, nil, nil))
	w, _ := do(t, r, http.MethodPost, "/api/story/cg", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
