package rollup

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Required comment columns.
var Required = []string{"ID", "text", "subthemes", "subs_sentiment", "confidence", "subs_evidences"}

// DimensionsColumn is appended to (or overwritten in) every row.
const DimensionsColumn = "Dimensions"

const bom = "\ufeff"

// Stats summarises a rollup.
type Stats struct {
	Rows     int
	Unmapped int // subthemes kept verbatim because no cluster holds them
}

// Rewrite reads comment rows from r, rewrites subthemes, sentiment and
// evidence per representative, and writes the rows with a Dimensions column
// to w. The output starts with a byte order mark.
func Rewrite(r io.Reader, w io.Writer, ix *Index) (Stats, error) {
	var st Stats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return st, fmt.Errorf("rollup: empty comments file")
	}
	if err != nil {
		return st, fmt.Errorf("rollup: read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimPrefix(h, bom)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := col[h]; !ok {
			col[h] = i
		}
	}
	var missing []string
	for _, c := range Required {
		if _, ok := col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return st, fmt.Errorf("rollup: missing columns %v, expected %v", missing, Required)
	}
	dimCol, ok := col[DimensionsColumn]
	if !ok {
		dimCol = len(header)
		header = append(header, DimensionsColumn)
	}

	if _, err := io.WriteString(w, bom); err != nil {
		return st, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return st, err
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, fmt.Errorf("rollup: row %d: %w", st.Rows+2, err)
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		subs := splitPipes(rec[col["subthemes"]])
		for _, s := range subs {
			if _, ok := ix.members[s]; !ok {
				st.Unmapped++
			}
		}
		res := ix.Apply(subs, parseDict(rec[col["subs_sentiment"]]), parseDict(rec[col["subs_evidences"]]))
		rec[col["subthemes"]] = strings.Join(res.Subthemes, "|")
		rec[dimCol] = strings.Join(res.Dimensions, "|")
		rec[col["subs_sentiment"]] = encodeDict(res.Subthemes, res.Sentiment)
		rec[col["subs_evidences"]] = encodeDict(res.Subthemes, res.Evidence)
		if err := cw.Write(rec); err != nil {
			return st, err
		}
		st.Rows++
	}
	cw.Flush()
	return st, cw.Error()
}

// RewriteFile rewrites the comments CSV at path in place through a
// temporary sibling file.
func RewriteFile(path string, ix *Index) (Stats, error) {
	in, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("rollup: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return Stats{}, fmt.Errorf("rollup: %w", err)
	}
	st, err := Rewrite(in, tmp, ix)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return st, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return st, fmt.Errorf("rollup: %w", err)
	}
	return st, nil
}
