package gamestate

import (
	"log/slog"

	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

// Apply returns the state after a selected choice: the choice text is
// remembered and its impacts are added. Affection only moves for
// characters that are already tracked.
func Apply(state Snapshot, sel playback.Selection) Snapshot {
	next := state.Clone()
	if sel.Record != nil {
		next.CurrentLineID = sel.Record.ID()
	}
	if sel.Choice.Text != "" {
		next.PreviousChoices = append(next.PreviousChoices, sel.Choice.Text)
	}

	for _, impact := range sel.Choice.Impacts {
		switch impact.Kind {
		case record.ImpactValue:
			if next.CoreValues == nil {
				next.CoreValues = map[string]int{}
			}
			next.CoreValues[impact.Target] += impact.Delta
		case record.ImpactSkill:
			if next.Skills == nil {
				next.Skills = map[string]int{}
			}
			next.Skills[impact.Target] += impact.Delta
		case record.ImpactAffection:
			current, ok := next.Affections[impact.Target]
			if !ok {
				slog.Debug("affection impact for untracked character", "character", impact.Target)
				continue
			}
			next.Affections[impact.Target] = ClampAffection(current + impact.Delta)
		}
	}
	return next
}
