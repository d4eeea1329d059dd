package types

// Project describes the game a chapter is generated for.
type Project struct {
	GUID          string   `json:"guid"`
	Title         string   `json:"title"`
	Premise       string   `json:"premise"`
	Genre         string   `json:"genre"`
	Tone          string   `json:"tone"`
	TotalChapters int      `json:"total_chapters"`
	PlayerName    string   `json:"player_name"`
	NPCs          []string `json:"npcs"`
	CoreValues    []string `json:"core_values"`
}

// Characters lists the player first, then the NPCs.
func (p Project) Characters() []string {
	out := make([]string, 0, len(p.NPCs)+1)
	if p.PlayerName != "" {
		out = append(out, p.PlayerName)
	}
	return append(out, p.NPCs...)
}
