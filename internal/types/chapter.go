package types

// ChapterEntry is one line of the chapter dialect.
type ChapterEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`

	Character1Name       string `json:"character1_name"`
	Character1Expression string `json:"character1_expression"`
	Character1Pose       string `json:"character1_pose"`
	Character1Position   string `json:"character1_position"`

	Character2Name       string `json:"character2_name"`
	Character2Expression string `json:"character2_expression"`
	Character2Pose       string `json:"character2_pose"`
	Character2Position   string `json:"character2_position"`

	BGName  string `json:"bg_name"`
	BGMName string `json:"bgm_name"`
	SFXName string `json:"sfx_name"`

	Choices []ChapterChoice `json:"choices"`

	CGID               string   `json:"cg_id"`
	CGTitle            string   `json:"cg_title"`
	CGSceneDescription string   `json:"cg_scene_description"`
	CGLighting         string   `json:"cg_lighting"`
	CGMood             string   `json:"cg_mood"`
	CGCameraAngle      string   `json:"cg_camera_angle"`
	CGCharacters       []string `json:"cg_characters"`
}

// ChapterChoice carries an author-specified jump target and typed impacts.
type ChapterChoice struct {
	Text            string            `json:"text"`
	NextID          int               `json:"next_id"`
	ValueImpact     []ValueImpact     `json:"value_impact"`
	SkillImpact     []SkillImpact     `json:"skill_impact"`
	AffectionImpact []AffectionImpact `json:"affection_impact"`
	SetFlags        []string          `json:"set_flags"`
}

// ValueImpact shifts a core value score.
type ValueImpact struct {
	ValueName string `json:"value_name"`
	Change    int    `json:"change"`
}

// SkillImpact shifts a derived skill score.
type SkillImpact struct {
	SkillName string `json:"skill_name"`
	Change    int    `json:"change"`
}

// AffectionImpact shifts an NPC's affection.
type AffectionImpact struct {
	CharacterName string `json:"character_name"`
	Change        int    `json:"change"`
}
