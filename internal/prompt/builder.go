// Package prompt assembles the prompts sent to the generation models.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/easeaico/project-iyagi/internal/types"
)

// Resources lists what the renderer can show.
type Resources struct {
	Characters  []string
	Backgrounds []string
	Looks       []string
}

// Builder assembles the free-form story prompts for a fixed resource set.
type Builder struct {
	resources Resources
}

// NewBuilder creates a prompt Builder.
func NewBuilder(resources Resources) *Builder {
	return &Builder{resources: resources}
}

// SystemPrompt lists the available resources and the entry format.
func (b *Builder) SystemPrompt() (string, error) {
	return render(storySystemTemplate, b.resources)
}

// UserPrompt prefixes the request with the accumulated context, if any.
func (b *Builder) UserPrompt(userPrompt, previousContext string) (string, error) {
	data := struct {
		Context string
		Prompt  string
	}{
		Context: strings.TrimRight(previousContext, "\n"),
		Prompt:  userPrompt,
	}
	return render(storyUserTemplate, data)
}

// SceneInput carries the inputs of one chapter scene prompt.
type SceneInput struct {
	Project     types.Project
	Chapter     int
	Scene       int
	TotalScenes int
	// State is the rendered game-state snapshot; empty means the first chapter.
	State          string
	PreviousScenes string
}

// ScenePrompt builds the chapter-dialect prompt for one scene.
func ScenePrompt(in SceneInput) (string, error) {
	if in.Chapter <= 0 || in.Scene <= 0 {
		return "", fmt.Errorf("chapter and scene must be positive")
	}
	state := strings.TrimSpace(in.State)
	if state == "" {
		state = "Initial chapter"
	}

	data := struct {
		SceneInput
		CharacterList string
		NextIDExample int
	}{
		SceneInput:    in,
		CharacterList: characterList(in.Project),
		NextIDExample: in.Chapter*1000 + 50,
	}
	data.State = state
	return render(sceneTemplate, data)
}

func characterList(p types.Project) string {
	parts := []string{"Player: " + p.PlayerName}
	return strings.Join(append(parts, p.NPCs...), ", ")
}

// CGInput describes the still to render.
type CGInput struct {
	Description string
	Lighting    string
	Mood        string
	Camera      string
	Characters  []string
}

// CGPrompt builds the image prompt for a CG still.
func CGPrompt(in CGInput) (string, error) {
	if strings.TrimSpace(in.Description) == "" {
		return "", fmt.Errorf("cg description is required")
	}
	return render(cgTemplate, in)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}
