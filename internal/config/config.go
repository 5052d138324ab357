package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zheng/modgraph/internal/graph"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Build    BuildConfig    `mapstructure:"build"`
	Walk     WalkConfig     `mapstructure:"walk"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Web      WebConfig      `mapstructure:"web"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AnalysisConfig controls how the Go project is turned into an item catalog
type AnalysisConfig struct {
	Patterns   []string `mapstructure:"patterns"`
	Tests      bool     `mapstructure:"tests"`
	Externs    bool     `mapstructure:"externs"`
	CallGraph  bool     `mapstructure:"callgraph"`
	Fields     bool     `mapstructure:"fields"`
	Implements bool     `mapstructure:"implements"`
}

// BuildConfig maps onto graph builder options
type BuildConfig struct {
	PruneFrom    []string `mapstructure:"prune_from"`
	ExcludeKinds []string `mapstructure:"exclude_kinds"`
	SelfLoops    bool     `mapstructure:"self_loops"`
}

// WalkConfig maps onto graph walker options
type WalkConfig struct {
	Order    string `mapstructure:"order"`
	MaxDepth int    `mapstructure:"max_depth"`
	Uses     bool   `mapstructure:"uses"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type WebConfig struct {
	Port int `mapstructure:"port"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("analysis.patterns", []string{"./..."})
	v.SetDefault("analysis.tests", false)
	v.SetDefault("analysis.externs", false)
	v.SetDefault("analysis.callgraph", false)
	v.SetDefault("analysis.fields", false)
	v.SetDefault("analysis.implements", false)
	v.SetDefault("build.prune_from", []string{})
	v.SetDefault("build.exclude_kinds", []string{})
	v.SetDefault("build.self_loops", true)
	v.SetDefault("walk.order", "insertion")
	v.SetDefault("walk.max_depth", 0)
	v.SetDefault("walk.uses", true)
	v.SetDefault("storage.path", ".modgraph.db")
	v.SetDefault("web.port", 8080)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "modgraph")
	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration from file and environment.
// An empty path looks for .modgraph.yaml in the working directory and
// tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MODGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		v.SetConfigName(".modgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := graph.ParseOrder(c.Walk.Order); err != nil {
		warnings = append(warnings, fmt.Sprintf("walk order '%s' is unknown, using insertion order", c.Walk.Order))
	}
	if c.Walk.MaxDepth < 0 {
		warnings = append(warnings, fmt.Sprintf("walk max_depth %d is negative, treating as unlimited", c.Walk.MaxDepth))
	}

	known := map[graph.NodeKind]bool{
		graph.NodeKindPackage: true, graph.NodeKindFunc: true, graph.NodeKindMethod: true,
		graph.NodeKindStruct: true, graph.NodeKindInterface: true, graph.NodeKindType: true,
		graph.NodeKindField: true, graph.NodeKindVar: true, graph.NodeKindConst: true,
	}
	for _, k := range c.Build.ExcludeKinds {
		if !known[graph.NodeKind(k)] {
			warnings = append(warnings, fmt.Sprintf("build exclude_kinds entry '%s' matches no item kind", k))
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("web port %d is not a valid TCP port", c.Web.Port))
	}
	if c.Neo4j.URI != "" && c.Neo4j.Password == "" {
		warnings = append(warnings, "neo4j uri is configured but password is empty")
	}

	return warnings
}

// BuilderOptions translates the build section into graph builder options
func (c *Config) BuilderOptions() []graph.BuilderOption {
	opts := []graph.BuilderOption{graph.WithSelfLoops(c.Build.SelfLoops)}
	if len(c.Build.ExcludeKinds) > 0 {
		kinds := make([]graph.NodeKind, len(c.Build.ExcludeKinds))
		for i, k := range c.Build.ExcludeKinds {
			kinds[i] = graph.NodeKind(k)
		}
		opts = append(opts, graph.WithExcludedKinds(kinds...))
	}
	if len(c.Build.PruneFrom) > 0 {
		roots := make([]graph.ItemID, len(c.Build.PruneFrom))
		for i, r := range c.Build.PruneFrom {
			roots[i] = graph.ItemID(r)
		}
		opts = append(opts, graph.WithPruneFrom(roots...))
	}
	return opts
}

// WalkOptions translates the walk section into graph walker options
func (c *Config) WalkOptions() []graph.WalkOption {
	order, err := graph.ParseOrder(c.Walk.Order)
	if err != nil {
		order = graph.InsertionOrder
	}
	return []graph.WalkOption{
		graph.WithOrder(order),
		graph.WithMaxDepth(max(c.Walk.MaxDepth, 0)),
		graph.WithUses(c.Walk.Uses),
	}
}
