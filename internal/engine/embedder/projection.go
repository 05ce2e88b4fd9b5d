package embedder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// projection is a sentence-transformers Dense layer: y = W·x (+ b).
type projection struct {
	weight []float32 // row-major [out, in]
	bias   []float32 // nil when the layer has none
	in     int
	out    int
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// readSafetensors returns the F32 tensors of a safetensors file by name.
func readSafetensors(data []byte) (map[string][]float32, map[string][]int, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("file too small: %d bytes", len(data))
	}
	hlen := binary.LittleEndian.Uint64(data[:8])
	if hlen > uint64(len(data)-8) {
		return nil, nil, fmt.Errorf("header length %d exceeds file size", hlen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+hlen], &header); err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}

	body := data[8+hlen:]
	tensors := make(map[string][]float32)
	shapes := make(map[string][]int)
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}
		var m tensorMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		if m.Dtype != "F32" {
			return nil, nil, fmt.Errorf("tensor %q: dtype %s, want F32", name, m.Dtype)
		}
		count := 1
		for _, d := range m.Shape {
			count *= d
		}
		lo, hi := m.DataOffsets[0], m.DataOffsets[1]
		if lo < 0 || hi > len(body) || hi-lo != count*4 {
			return nil, nil, fmt.Errorf("tensor %q: data range [%d:%d] does not fit shape %v", name, lo, hi, m.Shape)
		}
		vals := make([]float32, count)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[lo+i*4:]))
		}
		tensors[name] = vals
		shapes[name] = m.Shape
	}
	return tensors, shapes, nil
}

// loadProjection reads linear.weight and the optional linear.bias.
func loadProjection(path string) (*projection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	tensors, shapes, err := readSafetensors(data)
	if err != nil {
		return nil, fmt.Errorf("projection: %s: %w", path, err)
	}
	w, ok := tensors["linear.weight"]
	if !ok {
		return nil, fmt.Errorf("projection: %s: tensor linear.weight not found", path)
	}
	shape := shapes["linear.weight"]
	if len(shape) != 2 {
		return nil, fmt.Errorf("projection: linear.weight has shape %v, want 2D", shape)
	}
	p := &projection{weight: w, out: shape[0], in: shape[1]}
	if b, ok := tensors["linear.bias"]; ok {
		if len(b) != p.out {
			return nil, fmt.Errorf("projection: linear.bias has %d values, want %d", len(b), p.out)
		}
		p.bias = b
	}
	return p, nil
}

func (p *projection) apply(x []float32) []float32 {
	y := make([]float32, p.out)
	for i := range y {
		row := p.weight[i*p.in : (i+1)*p.in]
		var sum float32
		for j, w := range row {
			sum += w * x[j]
		}
		if p.bias != nil {
			sum += p.bias[i]
		}
		y[i] = sum
	}
	return y
}
