package services

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/temcen/recoengine/pkg/models"
)

// GenerateCandidates adds each similar user's score to every item they
// interacted with, skipping excluded items. Totals are not capped.
func GenerateCandidates(similar []models.ScoredID, interactions *models.InteractionMap, exclude mapset.Set[string]) *models.ScoreBoard {
	board := models.NewScoreBoard()
	if len(similar) == 0 || interactions == nil {
		return board
	}
	if exclude == nil {
		exclude = models.NewIDSet()
	}

	for _, peer := range similar {
		for _, itemID := range mapset.Sorted(interactions.Get(peer.ID)) {
			if exclude.Contains(itemID) {
				continue
			}
			board.Add(itemID, peer.Score)
		}
	}

	return board
}
