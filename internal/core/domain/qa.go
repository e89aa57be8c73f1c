package domain

// Source is a retrieved unit attributed in an Answer.
type Source struct {
	Type           ContentKind `json:"type"`
	Title          string      `json:"title"`
	Excerpt        string      `json:"excerpt"`
	RelevanceScore float64     `json:"relevance_score"`
	UnitID         string      `json:"unit_id,omitempty"`
	CourseID       string      `json:"course_id,omitempty"`
	URL            string      `json:"url,omitempty"`
}

// ConfidenceFactor names what drove a confidence value.
type ConfidenceFactor string

const (
	// FactorNone is used when nothing was retrieved.
	FactorNone ConfidenceFactor = "none"

	// FactorSimilarity means the top match strength dominated.
	FactorSimilarity ConfidenceFactor = "similarity"

	// FactorAgreement means disagreement among sources pulled confidence down.
	FactorAgreement ConfidenceFactor = "agreement"
)

// Answer is the attributed result of a question. It is never persisted.
type Answer struct {
	Text        string           `json:"answer"`
	Confidence  float64          `json:"confidence"`
	Sources     []Source         `json:"sources"`
	Explanation string           `json:"explanation"`
	Factor      ConfidenceFactor `json:"factor"`
}
