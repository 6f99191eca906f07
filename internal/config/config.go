package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port int

	Environment string

	SearchStoreAddresses []string
	SearchStoreAPIKey    string
	SearchStoreProxyURL  string

	GCSBucketPrefix    string
	GCSSignedURLExpiry time.Duration

	GCPProject        string
	EmbeddingLocation string
	EmbeddingModel    string

	SearchMaxConcurrent   int
	SearchResultsPerIndex int
	SearchMinLexicalScore float64

	RRFK                   int
	RRFAgreementBoost      float64
	RRFQueryOverlapWeight  float64
	RRFMinOverlapThreshold float64
	RRFFuzzyThreshold      int
	RRFMinTokenCoverage    float64
	RRFTemporalWeight      float64
	RRFTemporalStrategy    string

	MaxContextTokens int
	InitialPadding   int
	TopN             int
}

// Load reads configuration from environment variables.
// Required variables (SEARCHSTORE_ADDRESSES, GOOGLE_CLOUD_PROJECT) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	addrs := envStr("SEARCHSTORE_ADDRESSES", "")
	if addrs == "" {
		return nil, fmt.Errorf("config.Load: SEARCHSTORE_ADDRESSES is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	expiry, err := time.ParseDuration(envStr("GCS_SIGNED_URL_EXPIRY", "15m"))
	if err != nil {
		expiry = 15 * time.Minute
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		SearchStoreAddresses: splitNonEmpty(addrs),
		SearchStoreAPIKey:    envStr("SEARCHSTORE_API_KEY", ""),
		SearchStoreProxyURL:  envStr("PROXY_URL", ""),

		GCSBucketPrefix:    envStr("GCS_BUCKET_PREFIX", "docfusion-processed"),
		GCSSignedURLExpiry: expiry,

		GCPProject:        gcpProject,
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", "global"),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),

		SearchMaxConcurrent:   envInt("SEARCH_MAX_CONCURRENT", 6),
		SearchResultsPerIndex: envInt("SEARCH_RESULTS_PER_INDEX", 50),
		SearchMinLexicalScore: envFloat("SEARCH_MIN_LEXICAL_SCORE", 0.1),

		RRFK:                   envInt("RRF_K", 60),
		RRFAgreementBoost:      envFloat("RRF_AGREEMENT_BOOST", 0.3),
		RRFQueryOverlapWeight:  envFloat("RRF_QUERY_OVERLAP_WEIGHT", 0.2),
		RRFMinOverlapThreshold: envFloat("RRF_MIN_OVERLAP_THRESHOLD", 0.3),
		RRFFuzzyThreshold:      envInt("RRF_FUZZY_THRESHOLD", 85),
		RRFMinTokenCoverage:    envFloat("RRF_MIN_TOKEN_COVERAGE", 0.5),
		RRFTemporalWeight:      envFloat("RRF_TEMPORAL_WEIGHT", 0.15),
		RRFTemporalStrategy:    envStr("RRF_TEMPORAL_STRATEGY", "interaction"),

		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 125000),
		InitialPadding:   envInt("INITIAL_PADDING", 25),
		TopN:             envInt("RANK_TOP_N", 3),
	}

	return cfg, nil
}

func splitNonEmpty(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envFloat(key string, fallback float64) float64 {
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
