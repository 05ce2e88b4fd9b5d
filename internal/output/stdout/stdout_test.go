package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/crimson-sun/cultura/internal/model"
	"github.com/crimson-sun/cultura/internal/output"
)

func TestWriteEncodesClusters(t *testing.T) {
	var buf bytes.Buffer
	o := NewWriter(&buf)
	err := o.Write(context.Background(), output.Report{
		Keys: []string{"Respect"},
		Clusters: map[string][]model.Cluster{
			"Respect": {{Representative: "dignity", Members: []string{"dignity"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string][]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got["Respect"][0]["representative"] != "dignity" {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if err := o.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewUsesStdout(t *testing.T) {
	if New().w == nil {
		t.Fatal("stdout writer not set")
	}
}
