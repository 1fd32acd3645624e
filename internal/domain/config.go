package domain

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings (operational surface only)
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Engine configuration
	Features FeatureConfig  `json:"features"`
	Detector DetectorConfig `json:"detector"`
	Monitor  MonitorConfig  `json:"monitor"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// FeatureConfig holds feature-engineering settings.
type FeatureConfig struct {
	// RollingWindows are the trailing window sizes (records) used for
	// rolling statistics.
	RollingWindows []int `json:"rollingWindows"`

	// EMASpans are the exponential moving average spans.
	EMASpans []int `json:"emaSpans"`

	// CorrelationThreshold prunes one column from each pair whose
	// absolute pairwise correlation meets or exceeds it.
	CorrelationThreshold float64 `json:"correlationThreshold"`

	// RapidSuccessionSecs marks consecutive records closer than this
	// many seconds apart.
	RapidSuccessionSecs float64 `json:"rapidSuccessionSecs"`
}

// DetectorConfig holds ensemble-detector hyperparameters.
type DetectorConfig struct {
	// Contamination is the expected fraction of anomalies.
	Contamination float64 `json:"contamination"`

	// Seed drives all stochastic fitting for reproducible detection.
	Seed int64 `json:"seed"`

	// Isolation forest
	ForestTrees      int `json:"forestTrees"`
	ForestSampleSize int `json:"forestSampleSize"`

	// One-class boundary estimator
	SVMNu     float64 `json:"svmNu"`
	SVMEpochs int     `json:"svmEpochs"`

	// Density clustering proxy
	ClusterEps     float64 `json:"clusterEps"`
	ClusterMinPts  int     `json:"clusterMinPts"`
	MinClusterSize int     `json:"minClusterSize"`
}

// MonitorConfig holds alerting thresholds and drift test settings.
type MonitorConfig struct {
	AccuracyWarn      float64 `json:"accuracyWarn"`      // below: alert
	AccuracyHigh      float64 `json:"accuracyHigh"`      // below: high severity
	PrecisionWarn     float64 `json:"precisionWarn"`
	RecallWarn        float64 `json:"recallWarn"`
	AnomalyRateMax    float64 `json:"anomalyRateMax"`
	MeanDriftLimit    float64 `json:"meanDriftLimit"`    // standardized mean diff
	VarianceLogLimit  float64 `json:"varianceLogLimit"`  // |log variance ratio|
	KSStatisticLimit  float64 `json:"ksStatisticLimit"`
	SignificanceLevel float64 `json:"significanceLevel"` // p-value cutoff
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Features: FeatureConfig{
			RollingWindows:       []int{7, 30},
			EMASpans:             []int{7, 30},
			CorrelationThreshold: 0.95,
			RapidSuccessionSecs:  60,
		},
		Detector: DetectorConfig{
			Contamination:    0.05,
			Seed:             42,
			ForestTrees:      100,
			ForestSampleSize: 256,
			SVMNu:            0.05,
			SVMEpochs:        20,
			ClusterEps:       1.5,
			ClusterMinPts:    4,
			MinClusterSize:   5,
		},
		Monitor: MonitorConfig{
			AccuracyWarn:      0.90,
			AccuracyHigh:      0.70,
			PrecisionWarn:     0.80,
			RecallWarn:        0.80,
			AnomalyRateMax:    0.15,
			MeanDriftLimit:    2.0,
			VarianceLogLimit:  1.0,
			KSStatisticLimit:  0.1,
			SignificanceLevel: 0.05,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
