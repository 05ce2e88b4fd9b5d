package cultura

import (
	"github.com/crimson-sun/cultura/internal/engine/reranker"
	"github.com/crimson-sun/cultura/internal/model"
)

// Mapping is the dimension decision for one subtheme.
type Mapping struct {
	Subtheme   string   `json:"subtheme"`
	Dimensions []string `json:"dimensions"`         // best first; at most the configured cap
	Fallback   bool     `json:"fallback,omitempty"` // no candidate passed the gate
}

// Cluster groups near-duplicate subthemes of one dimension.
type Cluster struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}

// Dimension is one taxonomy entry.
type Dimension struct {
	Key         string
	Description string
	Aliases     []string
}

// Result is the outcome of Process.
type Result struct {
	Mappings []Mapping
	Clusters map[string][]Cluster
}

// Pair is one reranker input: a subtheme and a dimension hypothesis.
type Pair = reranker.Pair

func mappingFromModel(r model.MappingResult) Mapping {
	return Mapping{
		Subtheme:   r.Subtheme,
		Dimensions: append([]string(nil), r.Dimensions...),
		Fallback:   r.Fallback,
	}
}

func mappingToModel(m Mapping) model.MappingResult {
	return model.MappingResult{
		Subtheme:   m.Subtheme,
		Dimensions: m.Dimensions,
		Fallback:   m.Fallback,
	}
}

func clustersFromModel(in map[string][]model.Cluster) map[string][]Cluster {
	out := make(map[string][]Cluster, len(in))
	for key, cls := range in {
		list := make([]Cluster, len(cls))
		for i, c := range cls {
			list[i] = Cluster{Representative: c.Representative, Members: append([]string(nil), c.Members...)}
		}
		out[key] = list
	}
	return out
}
