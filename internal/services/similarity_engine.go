package services

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/temcen/recoengine/pkg/models"
)

// DefaultSimilarUsers is how many peers are kept per interaction signal.
const DefaultSimilarUsers = 30

// JaccardSimilarity returns |a ∩ b| / |a ∪ b|. Two empty sets have
// similarity 0.
func JaccardSimilarity(a, b mapset.Set[string]) float64 {
	if a == nil {
		a = models.NewIDSet()
	}
	if b == nil {
		b = models.NewIDSet()
	}

	union := a.Union(b).Cardinality()
	if union == 0 {
		return 0.0
	}
	return float64(a.Intersect(b).Cardinality()) / float64(union)
}

// TopSimilarUsers scores every peer against the target set and returns the
// topN peers with positive similarity, most similar first. Peers with equal
// scores keep their order in the interaction map.
func TopSimilarUsers(target mapset.Set[string], peers *models.InteractionMap, excludeUserID string, topN int) []models.ScoredID {
	if target == nil || target.Cardinality() == 0 || peers == nil {
		return nil
	}
	if topN <= 0 {
		topN = DefaultSimilarUsers
	}

	similar := make([]models.ScoredID, 0, peers.Len())
	for _, userID := range peers.UserIDs() {
		if userID == excludeUserID {
			continue
		}
		score := JaccardSimilarity(target, peers.Get(userID))
		if score > 0 {
			similar = append(similar, models.ScoredID{ID: userID, Score: score})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Score > similar[j].Score
	})

	if len(similar) > topN {
		similar = similar[:topN]
	}
	return similar
}
