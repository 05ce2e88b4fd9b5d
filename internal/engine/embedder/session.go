package embedder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the ONNX Runtime shared library location. By default
// libonnxruntime.so is expected next to the first model loaded.
const LibraryEnv = "ONNXRUNTIME_LIB"

var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(modelPath string) error {
	ortEnv.once.Do(func() {
		lib := os.Getenv(LibraryEnv)
		if lib == "" {
			lib = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
		}
		ort.SetSharedLibraryPath(lib)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Session is an ONNX transformer session fed by a Batch. It serves both
// encoders (output [batch, seq, hidden]) and sequence classifiers (output
// [batch, labels]).
type Session struct {
	session    *ort.DynamicAdvancedSession
	useTypes   bool
	outputName string
	rank       int
	width      int64
}

// NewSession opens modelPath. token_type_ids is fed only when the model
// declares it; RoBERTa exports usually do not.
func NewSession(modelPath string, threads int) (*Session, error) {
	if err := initORT(modelPath); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	names, useTypes, err := inputNames(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	out := outputs[0]
	rank := len(out.Dimensions)
	if rank != 2 && rank != 3 {
		return nil, fmt.Errorf("onnx: output %q has unsupported shape %v", out.Name, out.Dimensions)
	}
	width := out.Dimensions[rank-1]
	if width <= 0 {
		return nil, fmt.Errorf("onnx: output %q has dynamic last dimension", out.Name)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer opts.Destroy()
	if threads <= 0 {
		threads = 4
	}
	opts.SetIntraOpNumThreads(threads)
	opts.SetInterOpNumThreads(1)

	sess, err := ort.NewDynamicAdvancedSession(modelPath, names, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}
	return &Session{
		session:    sess,
		useTypes:   useTypes,
		outputName: out.Name,
		rank:       rank,
		width:      width,
	}, nil
}

func inputNames(inputs []ort.InputOutputInfo) ([]string, bool, error) {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !have[name] {
			return nil, false, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	if have["token_type_ids"] {
		return []string{"input_ids", "attention_mask", "token_type_ids"}, true, nil
	}
	return []string{"input_ids", "attention_mask"}, false, nil
}

// Width is the size of the output's last dimension (hidden size or label count).
func (s *Session) Width() int64 { return s.width }

// PerToken reports whether the output carries one vector per token.
func (s *Session) PerToken() bool { return s.rank == 3 }

// Run executes one forward pass and returns the flat output, shaped
// [Size, SeqLen, Width] or [Size, Width].
func (s *Session) Run(b Batch) ([]float32, error) {
	if b.Size == 0 {
		return nil, nil
	}
	shape := ort.NewShape(b.Size, b.SeqLen)

	feeds := [][]int64{b.InputIDs, b.AttentionMask}
	if s.useTypes {
		feeds = append(feeds, b.TokenTypeIDs)
	}
	inputs := make([]ort.Value, 0, len(feeds))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, data := range feeds {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	outShape := ort.NewShape(b.Size, s.width)
	if s.rank == 3 {
		outShape = ort.NewShape(b.Size, b.SeqLen, s.width)
	}
	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}

	src := out.GetData()
	res := make([]float32, len(src))
	copy(res, src)
	return res, nil
}

// Close releases the session.
func (s *Session) Close() error {
	return s.session.Destroy()
}
