package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/crimson-sun/cultura/internal/model"
)

// EncodeClusters writes clusters as an indented JSON object whose keys
// follow keys. Keys without an entry are written as empty lists; entries
// not named in keys are omitted.
func EncodeClusters(w io.Writer, keys []string, clusters map[string][]model.Cluster) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, k := range keys {
		cl := clusters[k]
		if cl == nil {
			cl = []model.Cluster{}
		}
		name, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("output: encode key: %w", err)
		}
		val, err := json.MarshalIndent(cl, "  ", "  ")
		if err != nil {
			return fmt.Errorf("output: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(keys) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// DecodeClusters reads cluster JSON. Each cluster's DimensionKey is set from
// its object key.
func DecodeClusters(r io.Reader) (map[string][]model.Cluster, error) {
	var out map[string][]model.Cluster
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("output: decode clusters: %w", err)
	}
	for k, cl := range out {
		for i := range cl {
			cl[i].DimensionKey = k
		}
	}
	return out, nil
}

// WriteMappingCSV writes one "subtheme,mapped_dimensions" row per result,
// dimensions joined with "|".
func WriteMappingCSV(w io.Writer, results []model.MappingResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"subtheme", "mapped_dimensions"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write([]string{r.Subtheme, strings.Join(r.Dimensions, "|")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
