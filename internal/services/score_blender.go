package services

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/temcen/recoengine/pkg/models"
)

const (
	BlendStrategyFixed            = "fixed"
	BlendStrategyActivityBalanced = "activity_balanced"

	lowActivityThreshold = 5
)

// BlendWeights weights the click and purchase candidate pools.
type BlendWeights struct {
	Click    float64
	Purchase float64
}

// DefaultBlendWeights favours purchase signals over clicks.
var DefaultBlendWeights = BlendWeights{Click: 0.4, Purchase: 0.6}

// ActivityBalancedWeights is the alternate weighting selected by the
// activity_balanced strategy: 0.3/0.7, evened out to 0.5/0.5 when the two
// pools hold fewer than five candidates together.
func ActivityBalancedWeights(clickCount, purchaseCount int) BlendWeights {
	if clickCount+purchaseCount < lowActivityThreshold {
		return BlendWeights{Click: 0.5, Purchase: 0.5}
	}
	return BlendWeights{Click: 0.3, Purchase: 0.7}
}

// Blend computes click*w.Click + purchase*w.Purchase per item, a missing
// score counting as 0, and ranks the result by descending score. Ties keep
// first-appearance order, click pool first.
func Blend(click, purchase *models.ScoreBoard, w BlendWeights) []models.ScoredID {
	ids := make([]string, 0, click.Len()+purchase.Len())
	ids = append(ids, click.IDs()...)
	for _, id := range purchase.IDs() {
		if _, seen := click.Get(id); !seen {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	clickScores := make([]float64, len(ids))
	purchaseScores := make([]float64, len(ids))
	for i, id := range ids {
		clickScores[i], _ = click.Get(id)
		purchaseScores[i], _ = purchase.Get(id)
	}

	final := make([]float64, len(ids))
	floats.AddScaled(final, w.Click, clickScores)
	floats.AddScaled(final, w.Purchase, purchaseScores)

	ranked := make([]models.ScoredID, len(ids))
	for i, id := range ids {
		ranked[i] = models.ScoredID{ID: id, Score: final[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}
