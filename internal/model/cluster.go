package model

// Cluster groups near-duplicate subthemes under one representative.
// Representative is always one of Members.
type Cluster struct {
	DimensionKey   string   `json:"-"`
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}
