package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "SEARCHSTORE_ADDRESSES", "SEARCHSTORE_API_KEY",
		"PROXY_URL", "GCS_BUCKET_PREFIX", "GCS_SIGNED_URL_EXPIRY",
		"GOOGLE_CLOUD_PROJECT", "VERTEX_AI_EMBEDDING_LOCATION", "VERTEX_AI_EMBEDDING_MODEL",
		"SEARCH_MAX_CONCURRENT", "SEARCH_RESULTS_PER_INDEX", "SEARCH_MIN_LEXICAL_SCORE",
		"RRF_K", "RRF_AGREEMENT_BOOST", "RRF_QUERY_OVERLAP_WEIGHT", "RRF_MIN_OVERLAP_THRESHOLD",
		"RRF_FUZZY_THRESHOLD", "RRF_MIN_TOKEN_COVERAGE", "RRF_TEMPORAL_WEIGHT", "RRF_TEMPORAL_STRATEGY",
		"MAX_CONTEXT_TOKENS", "INITIAL_PADDING", "RANK_TOP_N",
	} {
		os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SEARCHSTORE_ADDRESSES", "https://search.internal:9200")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "docfusion-prod")
}

func TestLoad_MissingSearchStoreAddresses(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "test-project")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing SEARCHSTORE_ADDRESSES")
	}
}

func TestLoad_MissingGCPProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCHSTORE_ADDRESSES", "https://search.internal:9200")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_CLOUD_PROJECT")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.SearchMaxConcurrent != 6 {
		t.Errorf("SearchMaxConcurrent = %d, want 6", cfg.SearchMaxConcurrent)
	}
	if cfg.SearchResultsPerIndex != 50 {
		t.Errorf("SearchResultsPerIndex = %d, want 50", cfg.SearchResultsPerIndex)
	}
	if cfg.RRFK != 60 {
		t.Errorf("RRFK = %d, want 60", cfg.RRFK)
	}
	if cfg.RRFAgreementBoost != 0.3 {
		t.Errorf("RRFAgreementBoost = %f, want 0.3", cfg.RRFAgreementBoost)
	}
	if cfg.RRFTemporalStrategy != "interaction" {
		t.Errorf("RRFTemporalStrategy = %q, want %q", cfg.RRFTemporalStrategy, "interaction")
	}
	if cfg.MaxContextTokens != 125000 {
		t.Errorf("MaxContextTokens = %d, want 125000", cfg.MaxContextTokens)
	}
	if cfg.InitialPadding != 25 {
		t.Errorf("InitialPadding = %d, want 25", cfg.InitialPadding)
	}
	if cfg.TopN != 3 {
		t.Errorf("TopN = %d, want 3", cfg.TopN)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RRF_TEMPORAL_STRATEGY", "strict")
	t.Setenv("RANK_TOP_N", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.RRFTemporalStrategy != "strict" {
		t.Errorf("RRFTemporalStrategy = %q, want %q", cfg.RRFTemporalStrategy, "strict")
	}
	if cfg.TopN != 5 {
		t.Errorf("TopN = %d, want 5", cfg.TopN)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080 (fallback)", cfg.Port)
	}
}

func TestLoad_InvalidFloatFallsBack(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("RRF_AGREEMENT_BOOST", "bad")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.RRFAgreementBoost != 0.3 {
		t.Errorf("RRFAgreementBoost = %f, want 0.3 (fallback)", cfg.RRFAgreementBoost)
	}
}

func TestLoad_RequiredFieldsPresent(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.SearchStoreAddresses) != 1 || cfg.SearchStoreAddresses[0] != "https://search.internal:9200" {
		t.Errorf("SearchStoreAddresses = %v, want single configured address", cfg.SearchStoreAddresses)
	}
	if cfg.GCPProject != "docfusion-prod" {
		t.Errorf("GCPProject = %q, want set value", cfg.GCPProject)
	}
}

func TestLoad_MultipleSearchStoreAddresses(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCHSTORE_ADDRESSES", "https://a:9200,https://b:9200")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "docfusion-prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.SearchStoreAddresses) != 2 {
		t.Errorf("SearchStoreAddresses = %v, want 2 entries", cfg.SearchStoreAddresses)
	}
}
