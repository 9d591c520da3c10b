// Package config loads mnemo's runtime configuration: recognized options
// named in §6, their defaults, and the translation into an engine.Params
// and a selected store.Store. Configuration is layered YAML-file-then-env,
// mirroring the teacher's pattern: a YAML document supplies the base, and
// environment variables override individual fields on top.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"mnemo/internal/activation"
	"mnemo/internal/decay"
	"mnemo/internal/engine"
	"mnemo/internal/graph"
	"mnemo/internal/manifest"
	"mnemo/internal/reinforce"
	"mnemo/internal/store"
)

// Backend selects the persistence implementation (§6: "recognized values
// (extensible): file, sqlite, others").
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Config is the complete set of recognized options from §6, grouped by
// the subsystem each feeds.
type Config struct {
	Workspace string `yaml:"workspace" validate:"required"`

	Backend    Backend `yaml:"backend" validate:"omitempty"`
	DataDir    string  `yaml:"data_dir" validate:"required"`
	SQLitePath string  `yaml:"sqlite_path"`

	RecallTimeout time.Duration `yaml:"recall_timeout" validate:"min=1ms"`

	// PolicyDir, if non-empty, is watched for policy-slot source files
	// (e.g. "decay.scm") so policy slots can be hot-reloaded (§4.9) without
	// a restart. Empty disables the watcher.
	PolicyDir string `yaml:"policy_dir"`

	Server ServerConfig `yaml:"server" validate:"dive"`

	Decay       DecayConfig       `yaml:"decay" validate:"dive"`
	Activation  ActivationConfig  `yaml:"activation" validate:"dive"`
	Reinforce   ReinforceConfig   `yaml:"reinforce" validate:"dive"`
	Consolidate ConsolidateConfig `yaml:"consolidate" validate:"dive"`
	Manifest    ManifestConfig    `yaml:"manifest" validate:"dive"`
	Exploration ExplorationConfig `yaml:"exploration" validate:"dive"`
	Policy      PolicyConfig      `yaml:"policy" validate:"dive"`

	Logging LoggingConfig `yaml:"logging" validate:"dive"`
	Tracing TracingConfig `yaml:"tracing" validate:"dive"`
	Metrics MetricsConfig `yaml:"metrics" validate:"dive"`

	LoadedFrom []string `yaml:"-"`
}

// DecayConfig covers halfLifeDays and edgeWeightFloor (§6).
type DecayConfig struct {
	HalfLifeDays    float64 `yaml:"half_life_days" validate:"min=0.01"`
	EdgeWeightFloor float64 `yaml:"edge_weight_floor" validate:"min=0,max=1"`
}

// ActivationConfig covers activationSteps/activationDecay/activationThreshold (§4.4, §6).
type ActivationConfig struct {
	Steps     int     `yaml:"steps" validate:"min=1,max=20"`
	Decay     float64 `yaml:"decay" validate:"min=0,max=1"`
	Threshold float64 `yaml:"threshold" validate:"min=0,max=1"`
}

// ReinforceConfig covers reinforceDelta/maxPairsPerRecall/coactTopKPerNode (§4.6, §6).
type ReinforceConfig struct {
	Delta             float64 `yaml:"delta" validate:"min=0,max=1"`
	MaxPairsPerRecall int     `yaml:"max_pairs_per_recall" validate:"min=0"`
	CoactTopKPerNode  int     `yaml:"coact_top_k_per_node" validate:"min=0"`
}

// ConsolidateConfig covers clusterEdgeMinWeight/clusterMinSize/clusterKeepRecent (§4.7, §6).
type ConsolidateConfig struct {
	ClusterEdgeMinWeight float64       `yaml:"cluster_edge_min_weight" validate:"min=0,max=1"`
	ClusterMinSize       int           `yaml:"cluster_min_size" validate:"min=1"`
	ClusterKeepRecent    int           `yaml:"cluster_keep_recent" validate:"min=0"`
	EventAgeThreshold    time.Duration `yaml:"event_age_threshold" validate:"min=1h"`
}

// ManifestConfig covers summarizeTopKeywords/summarizeMaxSnippets/clusterPercentile/neighborTopK (§4.8, §6).
type ManifestConfig struct {
	TopKeywords    int           `yaml:"summarize_top_keywords" validate:"min=1"`
	MaxSnippets    int           `yaml:"summarize_max_snippets" validate:"min=0"`
	ClusterPercentile float64    `yaml:"cluster_percentile" validate:"min=0,max=1"`
	NeighborTopK   int           `yaml:"neighbor_top_k" validate:"min=1"`
	KeyNodeCount   int           `yaml:"key_node_count" validate:"min=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" validate:"min=0"`
}

// ExplorationConfig covers explorationEpsilon/explorationFn (§4.5, §6).
type ExplorationConfig struct {
	Epsilon float64 `yaml:"epsilon" validate:"min=0,max=1"`
	Fn      string  `yaml:"fn" validate:"omitempty"`
}

// PolicyConfig covers the remaining policy source options named in §6:
// decayFn, recallScoreFn, recallScoreFns, recallCombinerFn, policyGeneratorFn.
type PolicyConfig struct {
	DecayFn           string   `yaml:"decay_fn"`
	RecallScoreFn     string   `yaml:"recall_score_fn"`
	RecallScoreFns    []string `yaml:"recall_score_fns"`
	RecallCombinerFn  string   `yaml:"recall_combiner_fn"`
	PolicyGeneratorFn string   `yaml:"policy_generator_fn"`
}

// ServerConfig covers the HTTP listener address.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"omitempty"`
}

// LoggingConfig, TracingConfig, and MetricsConfig are the ambient stack's
// options: not named by spec.md §6, but carried the way the teacher
// carries logging/tracing/metrics configuration regardless of feature
// non-goals.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint" validate:"omitempty"`
	ServiceName string `yaml:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"omitempty"`
}

// Default returns the documented defaults from §6.
func Default() Config {
	return Config{
		Workspace:     "default",
		Backend:       BackendFile,
		DataDir:       "./data",
		RecallTimeout: 2 * time.Second,
		Server:        ServerConfig{Addr: ":8085"},
		Decay:         DecayConfig{HalfLifeDays: 7, EdgeWeightFloor: 0.01},
		Activation:    ActivationConfig{Steps: 3, Decay: 0.85, Threshold: 0.2},
		Reinforce:     ReinforceConfig{Delta: 0.05, MaxPairsPerRecall: 12, CoactTopKPerNode: 3},
		Consolidate: ConsolidateConfig{
			ClusterEdgeMinWeight: 0.2, ClusterMinSize: 10, ClusterKeepRecent: 5,
			EventAgeThreshold: 30 * 24 * time.Hour,
		},
		Manifest: ManifestConfig{
			TopKeywords: 8, MaxSnippets: 5, ClusterPercentile: 0.6, NeighborTopK: 3,
			KeyNodeCount: 5, CacheTTL: 30 * time.Second,
		},
		Exploration: ExplorationConfig{Epsilon: 0.05},
		Logging:     LoggingConfig{Level: "info"},
		Metrics:     MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load builds a Config from (in increasing precedence) the documented
// defaults, an optional YAML file at path (skipped if path is ""  or the
// file does not exist), and environment variable overrides. Unknown YAML
// keys are ignored, not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.LoadedFrom = append(cfg.LoadedFrom, path)
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalizeBackend()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalizeBackend falls back to the file backend (with a warning on
// stderr) for any value other than the recognized ones, per §6's "unknown
// values fall back to file with a warning".
func (c *Config) normalizeBackend() {
	switch c.Backend {
	case BackendFile, BackendSQLite:
		return
	case "":
		c.Backend = BackendFile
	default:
		fmt.Fprintf(os.Stderr, "mnemo: unrecognized backend %q, falling back to file\n", c.Backend)
		c.Backend = BackendFile
	}
}

// Validate runs struct-tag validation plus the cross-field business
// rules that tags alone can't express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, e := range verrs {
				msgs = append(msgs, formatValidationError(e))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return c.validateBusinessRules()
}

func (c *Config) validateBusinessRules() error {
	if c.Consolidate.ClusterKeepRecent > c.Consolidate.ClusterMinSize {
		return fmt.Errorf("consolidate.cluster_keep_recent cannot exceed consolidate.cluster_min_size")
	}
	if c.Backend == BackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when backend is sqlite")
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Namespace())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Namespace(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag())
	}
}

// applyEnvOverrides lets MNEMO_-prefixed environment variables override
// any field a YAML file or the defaults set, mirroring the teacher's
// getEnv* helper pattern.
func applyEnvOverrides(c *Config) {
	c.Workspace = getEnvString("MNEMO_WORKSPACE", c.Workspace)
	c.Backend = Backend(getEnvString("MNEMO_BACKEND", string(c.Backend)))
	c.DataDir = getEnvString("MNEMO_DATA_DIR", c.DataDir)
	c.SQLitePath = getEnvString("MNEMO_SQLITE_PATH", c.SQLitePath)
	c.RecallTimeout = getEnvDuration("MNEMO_RECALL_TIMEOUT", c.RecallTimeout)
	c.PolicyDir = getEnvString("MNEMO_POLICY_DIR", c.PolicyDir)
	c.Server.Addr = getEnvString("MNEMO_SERVER_ADDR", c.Server.Addr)

	c.Decay.HalfLifeDays = getEnvFloat("MNEMO_HALF_LIFE_DAYS", c.Decay.HalfLifeDays)
	c.Decay.EdgeWeightFloor = getEnvFloat("MNEMO_EDGE_WEIGHT_FLOOR", c.Decay.EdgeWeightFloor)

	c.Activation.Steps = getEnvInt("MNEMO_ACTIVATION_STEPS", c.Activation.Steps)
	c.Activation.Decay = getEnvFloat("MNEMO_ACTIVATION_DECAY", c.Activation.Decay)
	c.Activation.Threshold = getEnvFloat("MNEMO_ACTIVATION_THRESHOLD", c.Activation.Threshold)

	c.Reinforce.Delta = getEnvFloat("MNEMO_REINFORCE_DELTA", c.Reinforce.Delta)
	c.Reinforce.MaxPairsPerRecall = getEnvInt("MNEMO_MAX_PAIRS_PER_RECALL", c.Reinforce.MaxPairsPerRecall)
	c.Reinforce.CoactTopKPerNode = getEnvInt("MNEMO_COACT_TOP_K_PER_NODE", c.Reinforce.CoactTopKPerNode)

	c.Consolidate.ClusterEdgeMinWeight = getEnvFloat("MNEMO_CLUSTER_EDGE_MIN_WEIGHT", c.Consolidate.ClusterEdgeMinWeight)
	c.Consolidate.ClusterMinSize = getEnvInt("MNEMO_CLUSTER_MIN_SIZE", c.Consolidate.ClusterMinSize)
	c.Consolidate.ClusterKeepRecent = getEnvInt("MNEMO_CLUSTER_KEEP_RECENT", c.Consolidate.ClusterKeepRecent)

	c.Manifest.TopKeywords = getEnvInt("MNEMO_SUMMARIZE_TOP_KEYWORDS", c.Manifest.TopKeywords)
	c.Manifest.MaxSnippets = getEnvInt("MNEMO_SUMMARIZE_MAX_SNIPPETS", c.Manifest.MaxSnippets)
	c.Manifest.ClusterPercentile = getEnvFloat("MNEMO_CLUSTER_PERCENTILE", c.Manifest.ClusterPercentile)
	c.Manifest.NeighborTopK = getEnvInt("MNEMO_NEIGHBOR_TOP_K", c.Manifest.NeighborTopK)

	c.Exploration.Epsilon = getEnvFloat("MNEMO_EXPLORATION_EPSILON", c.Exploration.Epsilon)
	c.Exploration.Fn = getEnvString("MNEMO_EXPLORATION_FN", c.Exploration.Fn)

	c.Policy.DecayFn = getEnvString("MNEMO_DECAY_FN", c.Policy.DecayFn)
	c.Policy.RecallScoreFn = getEnvString("MNEMO_RECALL_SCORE_FN", c.Policy.RecallScoreFn)
	c.Policy.RecallCombinerFn = getEnvString("MNEMO_RECALL_COMBINER_FN", c.Policy.RecallCombinerFn)
	c.Policy.PolicyGeneratorFn = getEnvString("MNEMO_POLICY_GENERATOR_FN", c.Policy.PolicyGeneratorFn)
	if v := getEnvStringSlice("MNEMO_RECALL_SCORE_FNS", nil); v != nil {
		c.Policy.RecallScoreFns = v
	}

	c.Logging.Level = getEnvString("MNEMO_LOG_LEVEL", c.Logging.Level)
	c.Tracing.Enabled = getEnvBool("MNEMO_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnvString("MNEMO_TRACING_ENDPOINT", c.Tracing.Endpoint)
	c.Metrics.Enabled = getEnvBool("MNEMO_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getEnvString("MNEMO_METRICS_ADDR", c.Metrics.Addr)
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return defaultValue
}

// EngineParams translates the recognized options into an engine.Params,
// so the engine package never needs to know about YAML or environment
// variables.
func (c Config) EngineParams() engine.Params {
	return engine.Params{
		Activation: activation.Params{
			Steps: c.Activation.Steps, Decay: c.Activation.Decay, Threshold: c.Activation.Threshold,
		},
		Reinforce: reinforce.Config{
			CoactTopKPerNode: c.Reinforce.CoactTopKPerNode, MaxPairsPerRecall: c.Reinforce.MaxPairsPerRecall,
			ReinforceDelta: c.Reinforce.Delta,
		},
		Decay: decay.Params{
			BaseHalfLifeDays: c.Decay.HalfLifeDays, EdgeWeightFloor: c.Decay.EdgeWeightFloor,
		},
		Consolidate: decay.ConsolidateParams{
			ClusterEdgeMinWeight: c.Consolidate.ClusterEdgeMinWeight,
			ClusterMinSize:       c.Consolidate.ClusterMinSize,
			ClusterKeepRecent:    c.Consolidate.ClusterKeepRecent,
			EventAgeThreshold:    c.Consolidate.EventAgeThreshold,
		},
		Manifest: manifest.Params{
			ClusterPercentile: c.Manifest.ClusterPercentile, NeighborTopK: c.Manifest.NeighborTopK,
			TopKeywords: c.Manifest.TopKeywords, KeyNodeCount: c.Manifest.KeyNodeCount,
			RecentActivity: c.Manifest.MaxSnippets, CacheTTL: c.Manifest.CacheTTL,
		},
		ExplorationEpsilon: c.Exploration.Epsilon,
		RecallTimeout:      c.RecallTimeout,
	}
}

// InitialPolicy builds the graph.Policy sources configured via the
// decayFn/recallScoreFn/... options, for seeding a fresh workspace.
func (c Config) InitialPolicy() graph.Policy {
	return graph.Policy{
		DecayFn:           c.Policy.DecayFn,
		RecallScoreFn:     c.Policy.RecallScoreFn,
		RecallScoreFns:    c.Policy.RecallScoreFns,
		RecallCombinerFn:  c.Policy.RecallCombinerFn,
		ExplorationFn:     c.Exploration.Fn,
		PolicyGeneratorFn: c.Policy.PolicyGeneratorFn,
	}
}

// OpenStore constructs the store.Store the configured backend names.
func (c Config) OpenStore() (store.Store, error) {
	switch c.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.NewSQLiteStore(context.Background(), c.SQLitePath)
	default:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.NewFileStore(c.DataDir + "/" + c.Workspace + ".mnemo"), nil
	}
}
