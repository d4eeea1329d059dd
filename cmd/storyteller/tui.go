package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

const helpText = `Type a prompt to generate a story segment.
  <enter>       next line
  1-4           pick a choice
  /chapter N    play chapter N
  /complete     finish the loaded chapter
  /state        show the game state
  /clear        forget the story context
  /reset        drop the current segment
  /help         show this help
  /quit         exit`

type chapterService interface {
	GenerateOrLoad(ctx context.Context, chapter int, state gamestate.Snapshot) (*agent.ChapterResult, error)
	Summarize(ctx context.Context, chapter int, seq record.Sequence, choices []string) (string, error)
}

// doneMsg reports a finished background call.
type doneMsg struct {
	notice string
	err    error
}

type styles struct {
	title   lipgloss.Style
	status  lipgloss.Style
	speaker lipgloss.Style
	choice  lipgloss.Style
	notice  lipgloss.Style
	err     lipgloss.Style
	help    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		speaker: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		choice:  lipgloss.NewStyle().Foreground(lipgloss.Color("229")).PaddingLeft(2),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// model maps terminal input onto the playback controller.
type model struct {
	ctx        context.Context
	controller *playback.Controller
	tracker    *gamestate.Tracker
	chapters   chapterService
	log        *gamestate.ChapterLog

	input  textinput.Model
	styles styles
	// busy is set while a background call runs; input is ignored meanwhile.
	busy   bool
	notice string
	err    error
}

func newModel(ctx context.Context, controller *playback.Controller, tracker *gamestate.Tracker, chapters chapterService, log *gamestate.ChapterLog) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "a prompt, a choice number or /help"
	input.CharLimit = 2000
	input.Focus()
	return model{
		ctx:        ctx,
		controller: controller,
		tracker:    tracker,
		chapters:   chapters,
		log:        log,
		input:      input,
		styles:     newStyles(),
		notice:     helpText,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.busy = false
		m.notice, m.err = msg.notice, msg.err
		// 终端一次显示整行
		m.controller.PresentationDone()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			m.notice, m.err = "", nil
			cmd := m.submit(line)
			if !m.busy {
				m.controller.PresentationDone()
			}
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs one input line. Blocking calls are returned as commands and
// mark the model busy.
func (m *model) submit(line string) tea.Cmd {
	switch {
	case line == "":
		m.err = m.controller.Advance()
	case line == "/quit" || line == "/exit":
		return tea.Quit
	case line == "/help":
		m.notice = helpText
	case line == "/state":
		m.notice = m.stateText()
	case line == "/reset":
		m.controller.ResetStory()
		m.log.Clear()
	case line == "/clear":
		return m.background(func(ctx context.Context) (string, error) {
			return "", m.controller.ClearContext(ctx)
		})
	case line == "/complete":
		return m.background(m.completeChapter)
	case strings.HasPrefix(line, "/chapter"):
		arg := strings.TrimSpace(strings.TrimPrefix(line, "/chapter"))
		number, err := strconv.Atoi(arg)
		if err != nil || number < 1 {
			m.err = fmt.Errorf("invalid chapter %q", arg)
			return nil
		}
		if m.chapters == nil {
			m.notice = "Chapter generation is disabled (GOOGLE_API_KEY not set)."
			return nil
		}
		m.notice = fmt.Sprintf("Preparing chapter %d...", number)
		return m.background(func(ctx context.Context) (string, error) {
			return m.loadChapter(ctx, number)
		})
	case strings.HasPrefix(line, "/"):
		m.err = fmt.Errorf("unknown command %s", line)
	case isChoice(line):
		n, _ := strconv.Atoi(line)
		_, m.err = m.controller.Select(n - 1)
	default:
		m.notice = "Generating story..."
		return m.background(func(ctx context.Context) (string, error) {
			err := m.controller.Generate(ctx, line)
			if !errors.Is(err, playback.ErrBusy) && !errors.Is(err, playback.ErrEmptyPrompt) {
				m.log.Clear()
			}
			return "", err
		})
	}
	return nil
}

func (m *model) background(fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.busy = true
	ctx := m.ctx
	return func() tea.Msg {
		notice, err := fn(ctx)
		return doneMsg{notice: notice, err: err}
	}
}

func isChoice(line string) bool {
	n, err := strconv.Atoi(line)
	return err == nil && n >= 1 && n <= record.MaxChoices
}

func (m model) stateText() string {
	if m.tracker == nil {
		return "Game state not configured."
	}
	snap := m.tracker.Snapshot()
	return snap.ToPromptString() + "State hash: " + snap.CacheHash()
}

func (m model) loadChapter(ctx context.Context, number int) (string, error) {
	if snap := m.controller.Snapshot(); snap.State == playback.Generating {
		return "", playback.ErrBusy
	}
	result, err := m.chapters.GenerateOrLoad(ctx, number, m.tracker.Snapshot())
	if err != nil {
		return "", err
	}
	status := fmt.Sprintf("Chapter %d loaded. %d dialogue entries.", number, len(result.Records))
	if err := m.controller.LoadSequence(result.Records, playback.BranchByNextID, status); err != nil {
		return "", err
	}
	m.log.Start(number, result.Records)

	var lines []string
	if result.FromCache {
		lines = append(lines, "(from cache)")
	}
	for _, cg := range result.CGs {
		if err := m.tracker.UnlockCG(ctx, cg.ID); err != nil {
			return strings.Join(lines, "\n"), err
		}
		lines = append(lines, "CG unlocked: "+cg.Title)
	}
	for _, clip := range result.Sounds {
		lines = append(lines, fmt.Sprintf("Sound ready: %s (%s)", clip.Name, clip.Format))
	}
	return strings.Join(lines, "\n"), nil
}

func (m model) completeChapter(ctx context.Context) (string, error) {
	number, seq, choices := m.log.Current()
	if number == 0 || m.chapters == nil {
		return "No chapter is loaded.", nil
	}
	summary, err := m.chapters.Summarize(ctx, number, seq, choices)
	if err != nil {
		summary = ""
	}
	if err := m.tracker.CompleteChapter(ctx, number, summary); err != nil {
		return "", err
	}
	m.log.Clear()
	return fmt.Sprintf("Chapter %d complete. Next: chapter %d", number, m.tracker.Snapshot().CurrentChapter), nil
}

func errorText(err error) string {
	switch {
	case errors.Is(err, playback.ErrChoicePending):
		return "Pick a choice first."
	case errors.Is(err, playback.ErrNotPlaying):
		return "Nothing is playing. Type a prompt."
	case errors.Is(err, playback.ErrBusy):
		return "Still generating, please wait."
	default:
		return "! " + err.Error()
	}
}

func (m model) View() string {
	snap := m.controller.Snapshot()
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Iyagi Storyteller"))
	b.WriteString("\n")
	b.WriteString(m.styles.status.Render(fmt.Sprintf("[%s] %s", snap.State, snap.Status)))
	b.WriteString("\n\n")

	if rec := snap.Current; rec != nil {
		fmt.Fprintf(&b, "(%d/%d) ", snap.Index+1, snap.Total)
		if speaker := rec.Speaker(); speaker != "" {
			b.WriteString(m.styles.speaker.Render(speaker))
			b.WriteString(": ")
		}
		b.WriteString(rec.Line(record.LangEnglish))
		b.WriteString("\n")
		if snap.State == playback.AwaitingChoice {
			for _, choice := range rec.Choices() {
				b.WriteString(m.styles.choice.Render(fmt.Sprintf("%d) %s", choice.Number, choice.Text)))
				b.WriteString("\n")
			}
		}
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.notice.Render(m.notice))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.err.Render(errorText(m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("enter: next line · 1-4: choose · /help · ctrl+c: quit"))
	return b.String()
}
