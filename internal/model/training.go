package model

// TrainingExample is one templated (subtheme, dimension) pair used to fit
// the reranker head. Label is 1 for gold dimensions, 0 for negatives.
type TrainingExample struct {
	Subtheme   string
	Dimension  string
	Hypothesis string // rendered template text
	Label      int
	Hard       bool // mined from nearest non-gold dimensions
}

// Metrics holds multi-label evaluation scores. All values lie in [0,1].
type Metrics struct {
	Top1Accuracy     float64 `json:"top1_accuracy"`
	ExamplePrecision float64 `json:"example_precision"`
	ExampleRecall    float64 `json:"example_recall"`
	ExampleF1        float64 `json:"example_f1"`
	MicroPrecision   float64 `json:"micro_precision"`
	MicroRecall      float64 `json:"micro_recall"`
	MicroF1          float64 `json:"micro_f1"`
	MacroPrecision   float64 `json:"macro_precision"`
	MacroRecall      float64 `json:"macro_recall"`
	MacroF1          float64 `json:"macro_f1"`
}
