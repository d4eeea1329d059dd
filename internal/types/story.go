package types

// StoryEntry is one line of the free-form story dialect.
type StoryEntry struct {
	Char1Name string        `json:"char1Name,omitempty" jsonschema:"first visible character, optional"`
	Char1Look string        `json:"char1Look,omitempty" jsonschema:"look token of the first character, default Normal_Normal"`
	Char1Pos  string        `json:"char1Pos,omitempty" jsonschema:"Left, Center or Right"`
	Char1Size string        `json:"char1Size,omitempty" jsonschema:"Small, Medium or Large, default Medium"`
	Char2Name string        `json:"char2Name,omitempty" jsonschema:"second visible character, optional"`
	Char2Look string        `json:"char2Look,omitempty" jsonschema:"look token of the second character"`
	Char2Pos  string        `json:"char2Pos,omitempty" jsonschema:"Left, Center or Right"`
	Char2Size string        `json:"char2Size,omitempty" jsonschema:"Small, Medium or Large"`
	BG        string        `json:"bg,omitempty" jsonschema:"background name"`
	NameTag   string        `json:"nameTag" jsonschema:"speaker name"`
	LineEng   string        `json:"lineEng" jsonschema:"dialogue in English"`
	LineKr    string        `json:"lineKr,omitempty" jsonschema:"dialogue in Korean"`
	Choices   []StoryChoice `json:"choices,omitempty" jsonschema:"up to three player choices"`
}

// StoryChoice is a choice of the free-form dialect.
type StoryChoice struct {
	TextEng string `json:"textEng"`
	TextKr  string `json:"textKr,omitempty"`
}
