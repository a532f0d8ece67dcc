package models

// ScoredID pairs an identifier (user or product) with a score.
type ScoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ScoreBoard accumulates scores per id and keeps first-appearance order,
// which is used to break ties deterministically.
type ScoreBoard struct {
	order  []string
	scores map[string]float64
}

func NewScoreBoard() *ScoreBoard {
	return &ScoreBoard{scores: make(map[string]float64)}
}

// Add increases the running total of id by delta.
func (b *ScoreBoard) Add(id string, delta float64) {
	if _, exists := b.scores[id]; !exists {
		b.order = append(b.order, id)
	}
	b.scores[id] += delta
}

// Get returns the score of id and whether it is present.
func (b *ScoreBoard) Get(id string) (float64, bool) {
	if b == nil {
		return 0, false
	}
	score, ok := b.scores[id]
	return score, ok
}

// IDs returns ids in first-appearance order.
func (b *ScoreBoard) IDs() []string {
	if b == nil {
		return nil
	}
	return b.order
}

func (b *ScoreBoard) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// RecommendationResponse is the body of GET /reco_api/{user_id}.
type RecommendationResponse struct {
	UserID          string    `json:"user_id"`
	Recommendations []Product `json:"recommendations"`
	Message         string    `json:"message,omitempty"`
	Status          string    `json:"status"`
}

// ProductListResponse is the body of the auxiliary product list endpoints.
type ProductListResponse struct {
	UserID   string    `json:"user_id,omitempty"`
	Category string    `json:"category,omitempty"`
	Products []Product `json:"products"`
	Status   string    `json:"status"`
}

const (
	StatusSuccess                 = "success"
	StatusSuccessNoRecommendation = "success_no_recommendation"
)

// RecommendationServedEvent is published after every /reco_api response.
type RecommendationServedEvent struct {
	EventID    string   `json:"event_id"`
	RequestID  string   `json:"request_id,omitempty"`
	UserID     string   `json:"user_id"`
	Outcome    string   `json:"outcome"`
	Strategy   string   `json:"strategy"`
	ProductIDs []string `json:"product_ids"`
	Limit      int      `json:"limit"`
	ServedAt   int64    `json:"served_at"`
}
