package prompt

import (
	"strings"
	"text/template"
)

const storySystemTemplateText = `You are a visual novel story writer. You will generate story scenes that can be rendered as a visual novel.

Available resources:
- Characters: {{join .Characters ", "}}
- Backgrounds: {{join .Backgrounds ", "}}
- Character looks: {{join .Looks ", "}}

Output ONLY a valid JSON array of dialogue entries. Each entry should have:
- char1Name: character name (optional)
- char1Look: character look/pose (default: Normal_Normal)
- char1Pos: Left, Center, or Right (optional)
- char1Size: Small, Medium, or Large (default: Medium)
- char2Name: second character (optional)
- char2Look, char2Pos, char2Size: same as char1
- bg: background name (optional)
- nameTag: speaker name
- lineEng: dialogue in English
- lineKr: dialogue in Korean
- choices: array of choice objects with textEng, textKr (optional)

Example output:
[{"char1Name":"Hans","char1Pos":"Center","bg":"riverside","nameTag":"Hans","lineEng":"What a beautiful day.","lineKr":"정말 아름다운 날이야."}]

Generate 3-8 dialogue entries that create an engaging short story. Use ONLY the available characters and backgrounds.
`

const storyUserTemplateText = `{{- if .Context -}}
Previous story context:
{{.Context}}

{{end -}}
User request:
{{.Prompt}}

Generate the story as a JSON array:
`

const sceneTemplateText = `You are a visual novel story generator.

# Game Information
- Title: {{.Project.Title}}
- Premise: {{.Project.Premise}}
- Genre: {{.Project.Genre}}
- Tone: {{.Project.Tone}}
- Total Chapters: {{.Project.TotalChapters}}
- Characters: {{.CharacterList}}
- Core Values: {{join .Project.CoreValues ", "}}

# Current State
{{.State}}
{{- if .PreviousScenes}}

# Previous Scenes in This Chapter
{{.PreviousScenes}}

Continue the story naturally from where it left off.
{{- end}}

# Task
Generate Scene {{.Scene}} of {{.TotalScenes}} for Chapter {{.Chapter}}.
Output ONLY a JSON array of 3-5 dialogue lines (IMPORTANT: keep it short!).

[
  {
    "speaker": "character name or narrator",
    "text": "dialogue text",
    "character1_name": "character name (if visible)",
    "character1_expression": "neutral/happy/sad/angry/surprised/embarrassed/thinking",
    "character1_pose": "normal/handsonhips/armscrossed/pointing/waving/thinking/surprised",
    "character1_position": "Left/Center/Right",
    "character2_name": "character name (if 2nd character)",
    "character2_expression": "expression",
    "character2_pose": "pose",
    "character2_position": "Left/Center/Right",
    "bg_name": "background name",
    "bgm_name": "bgm name",
    "sfx_name": "sfx name (optional)",
    "choices": [
      {
        "text": "choice text",
        "next_id": {{.NextIDExample}},
        "value_impact": [
          {
            "value_name": "Courage",
            "change": 10
          }
        ],
        "skill_impact": [
          {
            "skill_name": "Insight",
            "change": 5
          }
        ],
        "affection_impact": [
          {
            "character_name": "CharacterName",
            "change": 10
          }
        ],
        "set_flags": ["met_the_ferryman (optional)"]
      }
    ],
    "cg_id": "Ch{{.Chapter}}_CG1 (only for climactic moments)",
    "cg_title": "CG title",
    "cg_scene_description": "full scene description",
    "cg_lighting": "warm sunset glow",
    "cg_mood": "romantic",
    "cg_camera_angle": "close-up",
    "cg_characters": ["CharacterA", "CharacterB"]
  }
]

Important:
- Generate ONLY 3-5 dialogue lines for this scene (keep JSON short!)
- Include 1-2 choice points if appropriate for this scene
- Include CG only if this is a dramatic climax
- Output ONLY the JSON array, no text before or after
- CRITICAL: Ensure JSON is valid and properly closed with ]
- Omit optional fields if not needed

Note on Affection System:
- affection_impact in choices should reflect how the choice affects NPC relationships
- Affection does NOT affect chapter branching (only Core Values do)
- You can reference current affection scores when writing NPC dialogue/reactions
- set_flags marks story facts a choice makes true; reuse flag names from Story Flags when referring back`

const cgTemplateText = `A high-quality full-screen illustration in detailed watercolor / painterly style, inspired by Japanese visual novel event CGs.
{{- if .Characters}}
Characters in the scene: {{join .Characters ", "}}.
{{- end}}
The overall composition should depict: {{.Description}}.
Lighting: {{.Lighting}}.
Mood: {{.Mood}}.
Art style: painterly brush texture, soft blending, subtle outlines, watercolor texture visible on surfaces.
Background: fully painted, integrated with the character; no transparency.
Color palette: natural light tones, slightly desaturated hues for realism.
Camera angle: {{.Camera}}.`

var funcs = template.FuncMap{
	"join": strings.Join,
}

var (
	storySystemTemplate = template.Must(template.New("story_system").Funcs(funcs).Parse(storySystemTemplateText))
	storyUserTemplate   = template.Must(template.New("story_user").Funcs(funcs).Parse(storyUserTemplateText))
	sceneTemplate       = template.Must(template.New("scene").Funcs(funcs).Parse(sceneTemplateText))
	cgTemplate          = template.Must(template.New("cg").Funcs(funcs).Parse(cgTemplateText))
)
