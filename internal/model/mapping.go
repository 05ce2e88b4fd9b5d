package model

// Candidate is the per-(subtheme, dimension) score trace produced during one
// mapping call. It is never persisted.
type Candidate struct {
	Key        string  `json:"key"`
	Similarity float64 `json:"similarity"` // fused bi-encoder similarity in [0,1]
	Relevance  float64 `json:"relevance"`  // max-pooled reranker probability in [0,1]
	Fused      float64 `json:"fused"`      // alpha*Relevance + (1-alpha)*Similarity
	Alias      bool    `json:"alias,omitempty"`
	Accepted   bool    `json:"accepted,omitempty"`
}

// MappingResult is the final dimension assignment for one subtheme.
// Dimensions is ordered best first.
type MappingResult struct {
	Subtheme   string      `json:"subtheme"`
	Dimensions []string    `json:"dimensions"`
	Fallback   bool        `json:"fallback,omitempty"`
	Candidates []Candidate `json:"-"`
}

// Top returns the first-ranked dimension, or "" when none was assigned.
func (r MappingResult) Top() string {
	if len(r.Dimensions) == 0 {
		return ""
	}
	return r.Dimensions[0]
}
