package output

import (
	"context"

	"github.com/crimson-sun/cultura/internal/model"
)

// Report is the result of one batch run.
type Report struct {
	// Keys lists taxonomy keys in registry order; cluster JSON follows it.
	Keys     []string
	Clusters map[string][]model.Cluster
	Mappings []model.MappingResult
}

// Output defines the interface for report destinations.
type Output interface {
	Write(ctx context.Context, r Report) error
	Close() error
}
