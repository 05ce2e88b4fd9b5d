package model

// DimensionEntry is one entry of the fixed culture-dimension taxonomy.
type DimensionEntry struct {
	Key         string   // stable identifier, e.g. "Digital Empowerment"
	Description string   // short definition embedded and shown to the reranker
	Aliases     []string // surface phrases that force the dimension into the candidate set
}

// Text returns the string embedded for this dimension ("Key. Description").
func (d DimensionEntry) Text() string {
	return d.Key + ". " + d.Description
}
