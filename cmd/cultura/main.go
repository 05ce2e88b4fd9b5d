package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crimson-sun/cultura/internal/config"
	"github.com/crimson-sun/cultura/internal/engine"
	"github.com/crimson-sun/cultura/internal/engine/dedup"
	"github.com/crimson-sun/cultura/internal/engine/finetune"
	"github.com/crimson-sun/cultura/internal/logging"
	"github.com/crimson-sun/cultura/internal/metrics"
	"github.com/crimson-sun/cultura/internal/output"
	"github.com/crimson-sun/cultura/internal/output/file"
	"github.com/crimson-sun/cultura/internal/output/multi"
	"github.com/crimson-sun/cultura/internal/output/stdout"
	"github.com/crimson-sun/cultura/internal/pipeline"
	"github.com/crimson-sun/cultura/internal/rollup"
	"github.com/crimson-sun/cultura/internal/source"

	// Register source implementations.
	_ "github.com/crimson-sun/cultura/internal/source/csvsource"
	_ "github.com/crimson-sun/cultura/internal/source/httpsource"
	_ "github.com/crimson-sun/cultura/internal/source/sqlite"
)

const usage = `usage: cultura <command> [flags]

commands:
  map      map subthemes to culture dimensions and cluster them
  train    fine-tune the reranker head on gold labels and evaluate
  rollup   write representatives and dimensions back onto comment rows

run "cultura <command> -h" for command flags
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "map":
		err = runMap(ctx, args)
	case "train":
		err = runTrain(ctx, args)
	case "rollup":
		err = runRollup(args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "cultura: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "cultura %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration, then initializes logging.
func loadConfig(path string, outputIsStdout bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	logging.Init(cfg.Log.Format, outputIsStdout, logging.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func runMap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default $CULTURA_CONFIG or cultura.yaml)")
	input := fs.String("input", "", "subtheme source: .csv, SQLite database or http(s) URL (required)")
	kind := fs.String("kind", "", "source kind, inferred from -input when empty")
	table := fs.String("table", "", "SQLite table holding subthemes")
	column := fs.String("column", "", "column holding subthemes (default sub_theme)")
	out := fs.String("out", "", "cluster JSON path (default stdout)")
	mapping := fs.String("mapping", "", "also write the subtheme,mapped_dimensions CSV here")
	maxDims := fs.Int("max-dimensions", -1, "dimensions kept per subtheme (overrides config)")
	maxClusters := fs.Int("max-clusters", 0, "clusters per dimension (overrides config)")
	fs.Parse(args)
	if *input == "" {
		fs.Usage()
		return errors.New("-input is required")
	}

	cfg, err := loadConfig(*configPath, *out == "")
	if err != nil {
		return err
	}
	if *maxDims >= 0 {
		cfg.Mapping.MaxDimensions = *maxDims
	}
	if *maxClusters > 0 {
		cfg.Cluster.MaxClusters = *maxClusters
	}

	rec := metrics.New()
	start := time.Now()
	eng, err := engine.Load(ctx, cfg, engine.WithObserver(rec))
	if err != nil {
		return err
	}
	defer eng.Close()
	rec.ObserveStage("load", time.Since(start))

	src, err := source.Open(source.Config{
		Kind:   *kind,
		Path:   *input,
		Table:  *table,
		Column: *column,
		Token:  os.Getenv("CULTURA_SOURCE_TOKEN"),
	})
	if err != nil {
		return err
	}

	var dst output.Output
	switch {
	case *out != "":
		var opts []file.Option
		if *mapping != "" {
			opts = append(opts, file.WithMappingCSV(*mapping))
		}
		if dst, err = file.New(*out, opts...); err != nil {
			src.Close()
			return err
		}
	case *mapping != "":
		csvOut, err := file.New("", file.WithMappingCSV(*mapping))
		if err != nil {
			src.Close()
			return err
		}
		dst = multi.New(stdout.New(), csvOut)
	default:
		dst = stdout.New()
	}

	p := pipeline.New(src, eng, dst, pipeline.WithMetrics(rec))
	defer p.Close()

	st, err := p.Run(ctx)
	if err != nil {
		return err
	}
	writeMetrics(rec, cfg.Metrics.Textfile)
	fmt.Fprintf(os.Stderr, "cultura: mapped %d/%d distinct subthemes (coverage %.2f, %d fallbacks) into %d clusters\n",
		st.Mapped, st.Distinct, st.Coverage, st.Fallbacks, st.Clusters)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default $CULTURA_CONFIG or cultura.yaml)")
	subthemes := fs.String("subthemes", "", "subtheme source: .csv or SQLite database (required)")
	column := fs.String("column", "", "column holding subthemes (default sub_theme)")
	goldPath := fs.String("gold", "", "gold CSV with subthemes and dimensions columns (required)")
	artifactDir := fs.String("artifact-dir", "", "where to save the fine-tuned head (overrides config)")
	summaryPath := fs.String("summary", "", "evaluation summary JSON (default <artifact-dir>/summary.json)")
	fs.Parse(args)
	if *subthemes == "" || *goldPath == "" {
		fs.Usage()
		return errors.New("-subthemes and -gold are required")
	}

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	if *artifactDir != "" {
		cfg.Models.ArtifactDir = *artifactDir
	}
	if *summaryPath == "" {
		*summaryPath = filepath.Join(cfg.Models.ArtifactDir, "summary.json")
	}

	rec := metrics.New()
	eng, err := engine.Load(ctx, cfg, engine.WithoutArtifact())
	if err != nil {
		return err
	}
	defer eng.Close()

	src, err := source.Open(source.Config{Path: *subthemes, Column: *column, Token: os.Getenv("CULTURA_SOURCE_TOKEN")})
	if err != nil {
		return err
	}
	raw, err := src.Subthemes(ctx)
	src.Close()
	if err != nil {
		return err
	}
	gold, err := finetune.LoadGold(*goldPath, eng.Registry())
	if err != nil {
		return err
	}

	start := time.Now()
	sum, err := finetune.Run(ctx, eng.Fuser(), eng.Base(), dedup.Subthemes(raw), gold, engine.FineTuneConfig(cfg))
	if err != nil {
		return err
	}
	rec.ObserveStage("train", time.Since(start))
	rec.SetCoverage(sum.Coverage)
	if err := finetune.WriteSummary(*summaryPath, sum); err != nil {
		return err
	}
	writeMetrics(rec, cfg.Metrics.Textfile)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func runRollup(args []string) error {
	fs := flag.NewFlagSet("rollup", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default $CULTURA_CONFIG or cultura.yaml)")
	comments := fs.String("comments", "", "comments CSV to rewrite (required)")
	clustersPath := fs.String("clusters", "", "cluster JSON written by map (required)")
	out := fs.String("out", "", "write the result here instead of rewriting -comments in place")
	fs.Parse(args)
	if *comments == "" || *clustersPath == "" {
		fs.Usage()
		return errors.New("-comments and -clusters are required")
	}

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		return err
	}
	reg, err := engine.Registry(cfg.Taxonomy)
	if err != nil {
		return err
	}

	f, err := os.Open(*clustersPath)
	if err != nil {
		return err
	}
	clusters, err := output.DecodeClusters(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", *clustersPath, err)
	}
	ix := rollup.NewIndex(reg.Keys(), clusters)

	var st rollup.Stats
	if *out == "" {
		st, err = rollup.RewriteFile(*comments, ix)
	} else {
		st, err = rewriteTo(*comments, *out, ix)
	}
	if err != nil {
		return err
	}
	slog.Info("rollup complete", "rows", st.Rows, "unmapped", st.Unmapped)
	return nil
}

func rewriteTo(in, out string, ix *rollup.Index) (rollup.Stats, error) {
	r, err := os.Open(in)
	if err != nil {
		return rollup.Stats{}, err
	}
	defer r.Close()
	w, err := os.Create(out)
	if err != nil {
		return rollup.Stats{}, err
	}
	st, err := rollup.Rewrite(r, w, ix)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return st, err
}

func writeMetrics(rec *metrics.Recorder, path string) {
	if path == "" {
		return
	}
	if err := rec.WriteTextfile(path); err != nil {
		slog.Warn("metrics export failed", "path", path, "error", err)
	}
}
