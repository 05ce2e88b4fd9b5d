package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path or CULTURA_CONFIG is given and it exists.
const DefaultFile = "cultura.yaml"

// Config holds all cultura configuration.
type Config struct {
	Models   ModelsConfig   `yaml:"models"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	FineTune FineTuneConfig `yaml:"finetune"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// EncoderConfig locates one ONNX bi-encoder.
type EncoderConfig struct {
	Name       string `yaml:"name"`
	Model      string `yaml:"model"`
	Vocab      string `yaml:"vocab"`
	Tokenizer  string `yaml:"tokenizer"`
	Projection string `yaml:"projection"`
	Pooling    string `yaml:"pooling"` // "mean" or "cls"
	MaxSeqLen  int    `yaml:"max_seq_len"`
}

// ModelsConfig holds model locations and inference settings.
type ModelsConfig struct {
	Primary      EncoderConfig `yaml:"primary"`
	Secondary    EncoderConfig `yaml:"secondary"`
	CrossEncoder EncoderConfig `yaml:"cross_encoder"`
	ArtifactDir  string        `yaml:"artifact_dir"` // fine-tuned reranker head
	Threads      int           `yaml:"threads"`
	BatchSize    int           `yaml:"batch_size"`
}

// TaxonomyConfig points at optional replacements for the built-in taxonomy.
type TaxonomyConfig struct {
	File      string `yaml:"file"`
	AliasFile string `yaml:"alias_file"`
}

// MappingConfig holds the decision policy tunables.
type MappingConfig struct {
	SimFloor          float64            `yaml:"sim_floor"`
	TopM              int                `yaml:"top_m"`
	BaseThreshold     float64            `yaml:"base_threshold"`
	AdaptDelta        float64            `yaml:"adapt_delta"`
	WeakMean          float64            `yaml:"weak_mean"`
	DimensionDeltas   map[string]float64 `yaml:"dimension_deltas"`
	Alpha             float64            `yaml:"alpha"`
	FloorRatio        float64            `yaml:"floor_ratio"`
	MaxDimensions     int                `yaml:"max_dimensions"`
	EvalMaxDimensions int                `yaml:"eval_max_dimensions"`
	UseAliases        bool               `yaml:"use_aliases"`
	PrimaryWeight     float64            `yaml:"primary_weight"`
	SecondaryWeight   float64            `yaml:"secondary_weight"`
	Templates         []string           `yaml:"templates"`
}

// ClusterConfig holds per-dimension clustering settings.
type ClusterConfig struct {
	MaxClusters  int     `yaml:"max_clusters"`
	TargetWeight float64 `yaml:"target_weight"`
	OtherWeight  float64 `yaml:"other_weight"`
	Seed         int64   `yaml:"seed"`
}

// FineTuneConfig holds reranker head training settings.
type FineTuneConfig struct {
	Epochs        int     `yaml:"epochs"`
	BatchSize     int     `yaml:"batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	Warmup        float64 `yaml:"warmup"`
	L2            float64 `yaml:"l2"`
	Holdout       float64 `yaml:"holdout"`
	EasyNegatives int     `yaml:"easy_negatives"`
	HardNegatives int     `yaml:"hard_negatives"`
	HardK         int     `yaml:"hard_k"`
	Seed          int64   `yaml:"seed"`
}

// CacheConfig selects the embedding cache backend.
type CacheConfig struct {
	Backend     string        `yaml:"backend"` // "none", "memory", "sqlite", "redis"
	Path        string        `yaml:"path"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables export
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "auto", "json", "text"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Models: ModelsConfig{
			Primary: EncoderConfig{
				Name:      "bge-base-en-v1.5",
				Model:     "models/bge-base-en-v1.5/model.onnx",
				Vocab:     "models/bge-base-en-v1.5/vocab.txt",
				Pooling:   "cls",
				MaxSeqLen: 128,
			},
			Secondary: EncoderConfig{
				Name:      "sup-simcse-roberta-base",
				Model:     "models/sup-simcse-roberta-base/model.onnx",
				Tokenizer: "models/sup-simcse-roberta-base/tokenizer.json",
				Pooling:   "cls",
				MaxSeqLen: 128,
			},
			CrossEncoder: EncoderConfig{
				Name:      "ms-marco-MiniLM-L-6-v2",
				Model:     "models/ms-marco-MiniLM-L-6-v2/model.onnx",
				Vocab:     "models/ms-marco-MiniLM-L-6-v2/vocab.txt",
				MaxSeqLen: 256,
			},
			ArtifactDir: "models/ce_finetuned",
			BatchSize:   64,
		},
		Mapping: MappingConfig{
			SimFloor:          0.55,
			TopM:              6,
			BaseThreshold:     0.85,
			AdaptDelta:        0.04,
			WeakMean:          0.45,
			Alpha:             0.85,
			FloorRatio:        0.8,
			MaxDimensions:     1,
			EvalMaxDimensions: 3,
			UseAliases:        true,
			PrimaryWeight:     0.5,
			SecondaryWeight:   0.5,
		},
		Cluster: ClusterConfig{
			MaxClusters:  10,
			TargetWeight: 2.0,
			OtherWeight:  0.6,
			Seed:         42,
		},
		FineTune: FineTuneConfig{
			Epochs:        3,
			BatchSize:     16,
			LearningRate:  0.05,
			Warmup:        0.1,
			L2:            1e-4,
			Holdout:       0.2,
			EasyNegatives: 3,
			HardNegatives: 3,
			HardK:         10,
			Seed:          42,
		},
		Cache: CacheConfig{
			Backend:     "none",
			Path:        "cache/embeddings.db",
			RedisPrefix: "cultura:emb:",
			TTL:         7 * 24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// Load starts from Default, overlays the YAML file at path (or
// CULTURA_CONFIG, or DefaultFile when present), then applies CULTURA_*
// environment overrides. A missing explicit file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CULTURA_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	m := &cfg.Models
	m.Primary.Model = getenv("CULTURA_PRIMARY_MODEL", m.Primary.Model)
	m.Primary.Vocab = getenv("CULTURA_PRIMARY_VOCAB", m.Primary.Vocab)
	m.Primary.Tokenizer = getenv("CULTURA_PRIMARY_TOKENIZER", m.Primary.Tokenizer)
	m.Secondary.Model = getenv("CULTURA_SECONDARY_MODEL", m.Secondary.Model)
	m.Secondary.Vocab = getenv("CULTURA_SECONDARY_VOCAB", m.Secondary.Vocab)
	m.Secondary.Tokenizer = getenv("CULTURA_SECONDARY_TOKENIZER", m.Secondary.Tokenizer)
	m.CrossEncoder.Model = getenv("CULTURA_CROSS_ENCODER_MODEL", m.CrossEncoder.Model)
	m.CrossEncoder.Vocab = getenv("CULTURA_CROSS_ENCODER_VOCAB", m.CrossEncoder.Vocab)
	m.ArtifactDir = getenv("CULTURA_ARTIFACT_DIR", m.ArtifactDir)
	m.Threads = getenvInt("CULTURA_THREADS", m.Threads)
	m.BatchSize = getenvInt("CULTURA_BATCH_SIZE", m.BatchSize)

	cfg.Taxonomy.File = getenv("CULTURA_TAXONOMY_FILE", cfg.Taxonomy.File)
	cfg.Taxonomy.AliasFile = getenv("CULTURA_ALIAS_FILE", cfg.Taxonomy.AliasFile)

	mp := &cfg.Mapping
	mp.SimFloor = getenvFloat("CULTURA_SIM_FLOOR", mp.SimFloor)
	mp.TopM = getenvInt("CULTURA_TOP_M", mp.TopM)
	mp.BaseThreshold = getenvFloat("CULTURA_BASE_THRESHOLD", mp.BaseThreshold)
	mp.AdaptDelta = getenvFloat("CULTURA_ADAPT_DELTA", mp.AdaptDelta)
	mp.Alpha = getenvFloat("CULTURA_ALPHA", mp.Alpha)
	mp.MaxDimensions = getenvInt("CULTURA_MAX_DIMENSIONS", mp.MaxDimensions)
	mp.UseAliases = getenvBool("CULTURA_USE_ALIASES", mp.UseAliases)

	cfg.Cluster.MaxClusters = getenvInt("CULTURA_MAX_CLUSTERS", cfg.Cluster.MaxClusters)
	if v := os.Getenv("CULTURA_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cluster.Seed = seed
			cfg.FineTune.Seed = seed
		}
	}
	cfg.FineTune.Epochs = getenvInt("CULTURA_EPOCHS", cfg.FineTune.Epochs)
	cfg.FineTune.LearningRate = getenvFloat("CULTURA_LEARNING_RATE", cfg.FineTune.LearningRate)

	cfg.Cache.Backend = getenv("CULTURA_CACHE", cfg.Cache.Backend)
	cfg.Cache.Path = getenv("CULTURA_CACHE_PATH", cfg.Cache.Path)
	cfg.Cache.RedisAddr = getenv("CULTURA_REDIS_ADDR", cfg.Cache.RedisAddr)

	cfg.Metrics.Textfile = getenv("CULTURA_METRICS_TEXTFILE", cfg.Metrics.Textfile)
	cfg.Log.Level = getenv("CULTURA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("CULTURA_LOG_FORMAT", cfg.Log.Format)
}

// Validate checks the configuration for errors. It returns all problems
// found, joined into a single error.
func (c Config) Validate() error {
	return errors.Join(c.ValidateTunables(), c.ValidateModels(true, true))
}

// ValidateTunables checks every setting except model locations. Callers
// that inject their own models use it with ValidateModels for the rest.
func (c Config) ValidateTunables() error {
	var errs []error
	mp := c.Mapping
	if mp.SimFloor < 0 || mp.SimFloor > 1 {
		errs = append(errs, fmt.Errorf("mapping.sim_floor must be in [0,1], got %v", mp.SimFloor))
	}
	if mp.TopM < 1 {
		errs = append(errs, fmt.Errorf("mapping.top_m must be at least 1, got %d", mp.TopM))
	}
	if mp.BaseThreshold <= 0 || mp.BaseThreshold > 1 {
		errs = append(errs, fmt.Errorf("mapping.base_threshold must be in (0,1], got %v", mp.BaseThreshold))
	}
	if mp.Alpha < 0 || mp.Alpha > 1 {
		errs = append(errs, fmt.Errorf("mapping.alpha must be in [0,1], got %v", mp.Alpha))
	}
	if mp.PrimaryWeight < 0 || mp.SecondaryWeight < 0 || mp.PrimaryWeight+mp.SecondaryWeight == 0 {
		errs = append(errs, fmt.Errorf("mapping fusion weights must be non-negative and not both zero"))
	}
	if c.Cluster.MaxClusters < 1 {
		errs = append(errs, fmt.Errorf("cluster.max_clusters must be at least 1, got %d", c.Cluster.MaxClusters))
	}
	if c.Cluster.TargetWeight <= 0 || c.Cluster.OtherWeight < 0 {
		errs = append(errs, fmt.Errorf("cluster weights must be positive target and non-negative other"))
	}
	if h := c.FineTune.Holdout; h < 0 || h >= 1 {
		errs = append(errs, fmt.Errorf("finetune.holdout must be in [0,1), got %v", h))
	}
	if c.FineTune.Epochs < 1 || c.FineTune.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("finetune epochs and batch_size must be at least 1"))
	}
	ft := c.FineTune
	if ft.EasyNegatives < 0 || ft.HardNegatives < 0 || ft.HardK < 0 {
		errs = append(errs, fmt.Errorf("finetune easy_negatives, hard_negatives and hard_k must be non-negative, got %d, %d, %d",
			ft.EasyNegatives, ft.HardNegatives, ft.HardK))
	}
	switch c.Cache.Backend {
	case "none", "memory", "sqlite":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("cache backend redis requires CULTURA_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be none, memory, sqlite or redis, got %q", c.Cache.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ValidateModels checks that the bi-encoder files (when embedders is set)
// and the cross-encoder files (when crossEncoder is set) are configured and
// the model files exist.
func (c Config) ValidateModels(embedders, crossEncoder bool) error {
	type encoder struct {
		name string
		cfg  EncoderConfig
	}
	var check []encoder
	if embedders {
		check = append(check, encoder{"primary", c.Models.Primary}, encoder{"secondary", c.Models.Secondary})
	}
	if crossEncoder {
		check = append(check, encoder{"cross_encoder", c.Models.CrossEncoder})
	}
	var errs []error
	for _, e := range check {
		if e.cfg.Model == "" {
			errs = append(errs, fmt.Errorf("models.%s: model path is required", e.name))
		} else if _, err := os.Stat(e.cfg.Model); err != nil {
			errs = append(errs, fmt.Errorf("models.%s: model file: %w", e.name, err))
		}
		if e.cfg.Vocab == "" && e.cfg.Tokenizer == "" {
			errs = append(errs, fmt.Errorf("models.%s: vocab or tokenizer path is required", e.name))
		}
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
