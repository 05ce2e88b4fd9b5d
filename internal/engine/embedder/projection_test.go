package embedder

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeSafetensors serializes F32 tensors in safetensors layout.
func writeSafetensors(t *testing.T, tensors map[string][]float32, shapes map[string][]int) string {
	t.Helper()
	header := make(map[string]any)
	var body []byte
	for name, vals := range tensors {
		start := len(body)
		for _, v := range vals {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
		}
		header[name] = map[string]any{
			"dtype":        "F32",
			"shape":        shapes[name],
			"data_offsets": []int{start, len(body)},
		}
	}
	hdr, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	data := binary.LittleEndian.AppendUint64(nil, uint64(len(hdr)))
	data = append(data, hdr...)
	data = append(data, body...)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProjectionWithBias(t *testing.T) {
	path := writeSafetensors(t,
		map[string][]float32{
			"linear.weight": {1, 0, 0, 1, 1, 1}, // [3, 2]
			"linear.bias":   {0, 0, 1},
		},
		map[string][]int{"linear.weight": {3, 2}, "linear.bias": {3}},
	)
	p, err := loadProjection(path)
	if err != nil {
		t.Fatalf("loadProjection: %v", err)
	}
	if p.in != 2 || p.out != 3 {
		t.Fatalf("shape = (%d, %d), want (2, 3)", p.in, p.out)
	}
	got := p.apply([]float32{2, 3})
	want := []float32{2, 3, 6}
	for i := range want {
		if !closeEnough(got[i], want[i]) {
			t.Fatalf("apply = %v, want %v", got, want)
		}
	}
}

func TestProjectionWithoutBias(t *testing.T) {
	path := writeSafetensors(t,
		map[string][]float32{"linear.weight": {2, 0, 0, 2}},
		map[string][]int{"linear.weight": {2, 2}},
	)
	p, err := loadProjection(path)
	if err != nil {
		t.Fatal(err)
	}
	got := p.apply([]float32{1, -1})
	if got[0] != 2 || got[1] != -2 {
		t.Errorf("apply = %v, want [2 -2]", got)
	}
}

func TestProjectionMissingTensor(t *testing.T) {
	path := writeSafetensors(t,
		map[string][]float32{"other": {1}},
		map[string][]int{"other": {1}},
	)
	if _, err := loadProjection(path); err == nil {
		t.Fatal("expected error for missing linear.weight")
	}
}

func TestReadSafetensorsCorrupt(t *testing.T) {
	if _, _, err := readSafetensors([]byte{1, 2}); err == nil {
		t.Error("expected error for short file")
	}
	data := binary.LittleEndian.AppendUint64(nil, 1000)
	if _, _, err := readSafetensors(data); err == nil {
		t.Error("expected error for oversized header")
	}
}
