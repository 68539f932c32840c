package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the discovery service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Collab    CollabConfig    `yaml:"collab"`
	Feed      FeedConfig      `yaml:"feed"`
	Events    EventsConfig    `yaml:"events"`
	Cache     CacheConfig     `yaml:"cache"`
	Query     QueryConfig     `yaml:"query"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds service-to-service API keys.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// TextSearch enables BM25 over TEXT fields; without it the keyword branch is off.
	TextSearch bool `yaml:"text_search"`
	// FilteredKNN reports that the index applies filters before KNN.
	FilteredKNN bool `yaml:"filtered_knn"`
}

// EmbeddingConfig holds the query embedding provider. An empty base_url
// disables the provider: the vector branch is not registered and content
// upserts must carry their embedding.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	User       string        `yaml:"user"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	// Instructions are prepended before embedding, for models trained with
	// asymmetric prefixes such as "query: " and "passage: ".
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// Enabled reports whether a provider is configured.
func (e EmbeddingConfig) Enabled() bool { return e.BaseURL != "" }

// IndexConfig shapes the content FT index.
type IndexConfig struct {
	Algorithm       string  `yaml:"algorithm"` // hnsw (default) or flat
	HNSWM           int     `yaml:"hnsw_m"`
	HNSWEFConstruct int     `yaml:"hnsw_ef_construction"`
	TitleWeight     float64 `yaml:"title_weight"`
}

// SearchConfig tunes retrieval and fusion.
type SearchConfig struct {
	Deadline       time.Duration   `yaml:"deadline"`
	ProfileTimeout time.Duration   `yaml:"profile_timeout"`
	HydrateTimeout time.Duration   `yaml:"hydrate_timeout"`
	Branches       BranchesConfig  `yaml:"branches"`
	Weights        WeightsConfig   `yaml:"weights"`
	Diversity      DiversityConfig `yaml:"diversity"`
}

// BranchesConfig holds per-branch settings.
type BranchesConfig struct {
	Keyword BranchConfig `yaml:"keyword"`
	Vector  BranchConfig `yaml:"vector"`
	Collab  BranchConfig `yaml:"collab"`
}

// BranchConfig bounds one retrieval branch.
type BranchConfig struct {
	TopK    int           `yaml:"top_k"`
	Timeout time.Duration `yaml:"timeout"`
}

// WeightsConfig holds the fusion weights; they must sum to 1.
type WeightsConfig struct {
	Keyword         float64 `yaml:"keyword"`
	Vector          float64 `yaml:"vector"`
	Collab          float64 `yaml:"collab"`
	Personalization float64 `yaml:"personalization"`
}

// Sum returns the total weight.
func (w WeightsConfig) Sum() float64 {
	return w.Keyword + w.Vector + w.Collab + w.Personalization
}

func (w WeightsConfig) isZero() bool { return w == WeightsConfig{} }

// DiversityConfig caps consecutive same-category results. MaxRun 0 disables it.
type DiversityConfig struct {
	MaxRun int `yaml:"max_run"`
	Window int `yaml:"window"`
}

// BreakerConfig is the circuit breaker policy shared by every branch.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Window           time.Duration `yaml:"window"`
	Cooldown         time.Duration `yaml:"cooldown"`
	HalfOpenRequests uint32        `yaml:"half_open_requests"`
}

// CollabConfig tunes collaborative filtering.
type CollabConfig struct {
	Lambda            float64 `yaml:"lambda"`
	MaxSeeds          int     `yaml:"max_seeds"`
	NeighboursPerSeed int     `yaml:"neighbours_per_seed"`
	ItemsPerNeighbour int     `yaml:"items_per_neighbour"`
	MinInteractions   int     `yaml:"min_interactions"`
	Parallelism       int     `yaml:"parallelism"`
}

// FeedConfig tunes the personalization feed.
type FeedConfig struct {
	Threshold    int           `yaml:"threshold"`
	MaxLatency   time.Duration `yaml:"max_latency"`
	Decay        float64       `yaml:"decay"`
	Window       time.Duration `yaml:"window"`
	Concurrency  int64         `yaml:"concurrency"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig is an exponential backoff policy.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxRetries      uint64        `yaml:"max_retries"`
}

// EventsConfig selects the interaction event bus.
type EventsConfig struct {
	Driver           string        `yaml:"driver"` // memory (default) or nats
	URL              string        `yaml:"url"`
	Topic            string        `yaml:"topic"`
	QueueGroup       string        `yaml:"queue_group"`
	DurableName      string        `yaml:"durable_name"`
	SubscribersCount int           `yaml:"subscribers_count"`
	AckWait          time.Duration `yaml:"ack_wait"`
	MaxDeliver       int           `yaml:"max_deliver"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	Buffer           int64         `yaml:"buffer"`
}

// CacheConfig sizes the read-through caches.
type CacheConfig struct {
	Content CacheEntityConfig `yaml:"content"`
	Profile CacheEntityConfig `yaml:"profile"`
}

// CacheEntityConfig sizes one cache.
type CacheEntityConfig struct {
	MaxEntries int64         `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// QueryConfig configures query understanding.
type QueryConfig struct {
	DefaultLanguage string     `yaml:"default_language"`
	Synonyms        [][]string `yaml:"synonyms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 2 * time.Second
	}
	if c.Embedding.CacheTTL <= 0 {
		c.Embedding.CacheTTL = 24 * time.Hour
	}

	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.TitleWeight <= 0 {
		c.Index.TitleWeight = 2
	}

	if c.Search.Deadline <= 0 {
		c.Search.Deadline = 250 * time.Millisecond
	}
	if c.Search.ProfileTimeout <= 0 {
		c.Search.ProfileTimeout = 50 * time.Millisecond
	}
	if c.Search.HydrateTimeout <= 0 {
		c.Search.HydrateTimeout = 50 * time.Millisecond
	}
	for _, b := range []*BranchConfig{&c.Search.Branches.Keyword, &c.Search.Branches.Vector, &c.Search.Branches.Collab} {
		if b.TopK <= 0 {
			b.TopK = 100
		}
	}
	if c.Search.Weights.isZero() {
		c.Search.Weights = WeightsConfig{Keyword: 0.35, Vector: 0.35, Collab: 0.20, Personalization: 0.10}
	}
	if c.Search.Diversity.MaxRun > 0 && c.Search.Diversity.Window <= 0 {
		c.Search.Diversity.Window = 20
	}

	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.Window <= 0 {
		c.Breaker.Window = 30 * time.Second
	}
	if c.Breaker.Cooldown <= 0 {
		c.Breaker.Cooldown = 10 * time.Second
	}
	if c.Breaker.HalfOpenRequests == 0 {
		c.Breaker.HalfOpenRequests = 1
	}

	if c.Collab.Lambda == 0 {
		c.Collab.Lambda = 0.3
	}
	if c.Collab.MaxSeeds <= 0 {
		c.Collab.MaxSeeds = 20
	}
	if c.Collab.NeighboursPerSeed <= 0 {
		c.Collab.NeighboursPerSeed = 50
	}
	if c.Collab.ItemsPerNeighbour <= 0 {
		c.Collab.ItemsPerNeighbour = 50
	}
	if c.Collab.MinInteractions <= 0 {
		c.Collab.MinInteractions = 10
	}
	if c.Collab.Parallelism <= 0 {
		c.Collab.Parallelism = 8
	}

	if c.Feed.Threshold <= 0 {
		c.Feed.Threshold = 20
	}
	if c.Feed.MaxLatency <= 0 {
		c.Feed.MaxLatency = 5 * time.Minute
	}
	if c.Feed.Decay == 0 {
		c.Feed.Decay = 0.8
	}
	if c.Feed.Window <= 0 {
		c.Feed.Window = 90 * 24 * time.Hour
	}
	if c.Feed.Concurrency <= 0 {
		c.Feed.Concurrency = 4
	}
	if c.Feed.TickInterval <= 0 {
		c.Feed.TickInterval = time.Second
	}
	if c.Feed.Retry.InitialInterval <= 0 {
		c.Feed.Retry.InitialInterval = 100 * time.Millisecond
	}
	if c.Feed.Retry.MaxInterval <= 0 {
		c.Feed.Retry.MaxInterval = 5 * time.Second
	}
	if c.Feed.Retry.MaxRetries == 0 {
		c.Feed.Retry.MaxRetries = 5
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "discovery.interactions"
	}
	if c.Events.Buffer <= 0 {
		c.Events.Buffer = 1024
	}

	if c.Cache.Content.MaxEntries <= 0 {
		c.Cache.Content.MaxEntries = 100_000
	}
	if c.Cache.Content.TTL <= 0 {
		c.Cache.Content.TTL = 10 * time.Minute
	}
	if c.Cache.Profile.MaxEntries <= 0 {
		c.Cache.Profile.MaxEntries = 50_000
	}
	if c.Cache.Profile.TTL <= 0 {
		c.Cache.Profile.TTL = 30 * time.Second
	}

	if c.Query.DefaultLanguage == "" {
		c.Query.DefaultLanguage = "en"
	}
}

// weightTolerance is the allowed drift of the weight sum from 1.
const weightTolerance = 1e-6

// Validate checks the configuration for correctness.
//
//nolint:gocyclo // flat list of checks
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Enabled() && c.Embedding.Model == "" {
		return errors.New("embedding.model is required when embedding.base_url is set")
	}
	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}

	w := c.Search.Weights
	for name, v := range map[string]float64{
		"keyword": w.Keyword, "vector": w.Vector, "collab": w.Collab, "personalization": w.Personalization,
	} {
		if v < 0 {
			return fmt.Errorf("search.weights.%s must be non-negative, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("search.weights must sum to 1, got %v", sum)
	}
	if c.Search.Diversity.MaxRun < 0 {
		return errors.New("search.diversity.max_run must be non-negative")
	}

	if c.Collab.Lambda < 0 || c.Collab.Lambda > 1 {
		return fmt.Errorf("collab.lambda must be in [0,1], got %v", c.Collab.Lambda)
	}
	if c.Feed.Decay < 0 || c.Feed.Decay >= 1 {
		return fmt.Errorf("feed.decay must be in [0,1), got %v", c.Feed.Decay)
	}
	if c.Feed.Retry.MaxInterval < c.Feed.Retry.InitialInterval {
		return errors.New("feed.retry.max_interval must be >= initial_interval")
	}

	switch c.Events.Driver {
	case "memory":
	case "nats":
		if c.Events.URL == "" {
			return errors.New("events.url is required for the nats driver")
		}
	default:
		return fmt.Errorf("events.driver must be \"memory\" or \"nats\", got %q", c.Events.Driver)
	}

	for i, group := range c.Query.Synonyms {
		if len(group) < 2 {
			return fmt.Errorf("query.synonyms[%d] needs at least two terms", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
