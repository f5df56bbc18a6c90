package progknn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// TableWeight splits a Run budget between the index and the table.
type TableWeight struct {
	// Tree is the fraction of each Run budget offered to the indexer for
	// absorbing points and rebuilding. Must be in [0, 1]. Default: 0.3.
	Tree float64

	// Table is informational: the table always receives whatever the indexer
	// did not consume. Must be >= 0. Default: 0.7.
	Table float64
}

// IndexKind selects the Indexer built by [New].
type IndexKind string

const (
	// IndexKDTree is a ProgressiveKDTree.
	IndexKDTree IndexKind = "kdtree"
	// IndexBallTree is a ProgressiveBallTree.
	IndexBallTree IndexKind = "balltree"
	// IndexLinear is a LinearIndex.
	IndexLinear IndexKind = "linear"
)

// IndexConfig controls the indexer built by [New].
type IndexConfig struct {
	// Kind selects the index structure. Default: IndexKDTree.
	Kind IndexKind

	// Metric is the distance function. Default: EuclideanMetric.
	Metric DistanceMetric

	// LeafSize is the target number of points per leaf. Leaves of the live
	// tree split once they hold more than 2*LeafSize points. Default: 16.
	LeafSize int

	// AddPointWeight is the fraction of the index budget spent absorbing new
	// points when both new points and a rebuild are pending. Must be in
	// (0, 1]. Default: 0.5.
	AddPointWeight float64

	// RebuildRatio triggers a balanced rebuild once the live tree holds
	// (1+RebuildRatio) times the points of its last balanced build.
	// Must be > 0. Default: 1.0.
	RebuildRatio float64
}

// SearchConfig controls individual k-NN searches.
type SearchConfig struct {
	// Checks caps the number of distance evaluations per query. 0 means
	// unlimited (exact search). Must be >= 0. Default: 0.
	Checks int
}

// Config controls a Table.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// K is the number of neighbors kept per point. Must be >= 1. Default: 10.
	K int

	// Dimension is the dimensionality of every point. Must be >= 1.
	Dimension int

	Weight TableWeight
	Index  IndexConfig
	Search SearchConfig

	// Logger receives structured run statistics. Default: discards output.
	Logger *slog.Logger

	// Metrics receives every UpdateResult. Default: NoopMetricsCollector.
	Metrics MetricsCollector
}

// DefaultConfig returns a Config with reasonable defaults. Dimension has no
// default and must be set.
func DefaultConfig() Config {
	return Config{
		K:      10,
		Weight: TableWeight{Tree: 0.3, Table: 0.7},
		Index: IndexConfig{
			Kind:           IndexKDTree,
			Metric:         EuclideanMetric{},
			LeafSize:       16,
			AddPointWeight: 0.5,
			RebuildRatio:   1.0,
		},
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.K == 0 {
		cfg.K = def.K
	}
	if cfg.Weight == (TableWeight{}) {
		cfg.Weight = def.Weight
	}
	applyIndexDefaults(&cfg.Index)
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetricsCollector{}
	}
}

func applyIndexDefaults(cfg *IndexConfig) {
	def := DefaultConfig().Index
	if cfg.Kind == "" {
		cfg.Kind = def.Kind
	}
	if cfg.Metric == nil {
		cfg.Metric = def.Metric
	}
	if cfg.LeafSize == 0 {
		cfg.LeafSize = def.LeafSize
	}
	if cfg.AddPointWeight == 0 {
		cfg.AddPointWeight = def.AddPointWeight
	}
	if cfg.RebuildRatio == 0 {
		cfg.RebuildRatio = def.RebuildRatio
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if cfg.K < 1 {
		return fmt.Errorf("%w: K must be >= 1, got %d", ErrInvalidConfig, cfg.K)
	}
	if cfg.Dimension < 1 {
		return fmt.Errorf("%w: Dimension must be >= 1, got %d", ErrInvalidConfig, cfg.Dimension)
	}
	if cfg.Weight.Tree < 0 || cfg.Weight.Tree > 1 {
		return fmt.Errorf("%w: Weight.Tree must be in [0, 1], got %f", ErrInvalidConfig, cfg.Weight.Tree)
	}
	if cfg.Weight.Table < 0 {
		return fmt.Errorf("%w: Weight.Table must be >= 0, got %f", ErrInvalidConfig, cfg.Weight.Table)
	}
	if cfg.Search.Checks < 0 {
		return fmt.Errorf("%w: Search.Checks must be >= 0, got %d", ErrInvalidConfig, cfg.Search.Checks)
	}
	return validateIndexConfig(&cfg.Index)
}

func validateIndexConfig(cfg *IndexConfig) error {
	switch cfg.Kind {
	case IndexKDTree, IndexBallTree, IndexLinear:
	default:
		return fmt.Errorf("%w: unknown Index.Kind %q", ErrInvalidConfig, cfg.Kind)
	}
	if cfg.LeafSize < 1 {
		return fmt.Errorf("%w: Index.LeafSize must be >= 1, got %d", ErrInvalidConfig, cfg.LeafSize)
	}
	if cfg.AddPointWeight <= 0 || cfg.AddPointWeight > 1 {
		return fmt.Errorf("%w: Index.AddPointWeight must be in (0, 1], got %f", ErrInvalidConfig, cfg.AddPointWeight)
	}
	if cfg.RebuildRatio <= 0 {
		return fmt.Errorf("%w: Index.RebuildRatio must be > 0, got %f", ErrInvalidConfig, cfg.RebuildRatio)
	}
	return nil
}

// fileConfig is the YAML shape of a Config.
type fileConfig struct {
	K         int `yaml:"k"`
	Dimension int `yaml:"dimension"`
	Weight    struct {
		Tree  float64 `yaml:"tree"`
		Table float64 `yaml:"table"`
	} `yaml:"weight"`
	Index struct {
		Kind           string  `yaml:"kind"`
		Metric         string  `yaml:"metric"`
		P              float64 `yaml:"p"`
		LeafSize       int     `yaml:"leaf_size"`
		AddPointWeight float64 `yaml:"add_point_weight"`
		RebuildRatio   float64 `yaml:"rebuild_ratio"`
	} `yaml:"index"`
	Search struct {
		Checks int `yaml:"checks"`
	} `yaml:"search"`
}

// LoadConfig reads a YAML configuration. Fields missing from the document
// keep their DefaultConfig values. The result is validated.
//
//	k: 15
//	dimension: 50
//	weight: {tree: 0.3, table: 0.7}
//	index: {kind: kdtree, metric: euclidean, leaf_size: 16, add_point_weight: 0.5, rebuild_ratio: 1.0}
//	search: {checks: 0}
func LoadConfig(r io.Reader) (Config, error) {
	def := DefaultConfig()

	var fc fileConfig
	fc.K = def.K
	fc.Weight.Tree = def.Weight.Tree
	fc.Weight.Table = def.Weight.Table
	fc.Index.Kind = string(def.Index.Kind)
	fc.Index.Metric = "euclidean"
	fc.Index.LeafSize = def.Index.LeafSize
	fc.Index.AddPointWeight = def.Index.AddPointWeight
	fc.Index.RebuildRatio = def.Index.RebuildRatio

	if err := yaml.NewDecoder(r).Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("progknn: decode config: %w", err)
	}

	metric, err := MetricByName(fc.Index.Metric, fc.Index.P)
	if err != nil {
		return Config{}, err
	}

	cfg := def
	cfg.K = fc.K
	cfg.Dimension = fc.Dimension
	cfg.Weight = TableWeight{Tree: fc.Weight.Tree, Table: fc.Weight.Table}
	cfg.Index = IndexConfig{
		Kind:           IndexKind(fc.Index.Kind),
		Metric:         metric,
		LeafSize:       fc.Index.LeafSize,
		AddPointWeight: fc.Index.AddPointWeight,
		RebuildRatio:   fc.Index.RebuildRatio,
	}
	cfg.Search = SearchConfig{Checks: fc.Search.Checks}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
