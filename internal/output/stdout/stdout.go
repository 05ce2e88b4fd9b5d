package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/cultura/internal/output"
)

// Output writes the cluster JSON to stdout.
type Output struct {
	w io.Writer
}

// New creates a stdout Output.
func New() *Output {
	return &Output{w: os.Stdout}
}

// NewWriter creates an Output writing to w instead of stdout.
func NewWriter(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Write(_ context.Context, r output.Report) error {
	if err := output.EncodeClusters(o.w, r.Keys, r.Clusters); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
