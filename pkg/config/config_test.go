package config

import (
	"testing"
	"time"
)

func validAgentConfig() AgentConfig {
	return AgentConfig{
		MinTradeSize:       10 * 1_000_000,
		MaxTradeSize:       500 * 1_000_000,
		MinSpreadBps:       50,
		FillPollInterval:   time.Second,
		FillPollTimeout:    30 * time.Second,
		UnwindPollInterval: time.Second,
		UnwindMaxPolls:     6,
		ExecutionMode:      ModeDryRun,
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.MaxAgents != 50 {
		t.Errorf("expected default max agents 50, got %d", cfg.MaxAgents)
	}

	if cfg.AgentDefaults.ExecutionMode != ModeDryRun {
		t.Errorf("expected default execution mode dry-run, got %s", cfg.AgentDefaults.ExecutionMode)
	}

	if cfg.AgentDefaults.UnwindMaxPolls != 6 {
		t.Errorf("expected default unwind max polls 6, got %d", cfg.AgentDefaults.UnwindMaxPolls)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("MAX_AGENTS", "7")
	t.Setenv("AGENT_MIN_SPREAD_BPS", "120")
	t.Setenv("AGENT_EXECUTION_MODE", "clob")
	t.Setenv("SCAN_INTERVAL", "250ms")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MaxAgents != 7 {
		t.Errorf("expected max agents 7, got %d", cfg.MaxAgents)
	}

	if cfg.AgentDefaults.MinSpreadBps != 120 {
		t.Errorf("expected min spread 120, got %d", cfg.AgentDefaults.MinSpreadBps)
	}

	if cfg.AgentDefaults.ExecutionMode != ModeCLOB {
		t.Errorf("expected clob mode, got %s", cfg.AgentDefaults.ExecutionMode)
	}

	if cfg.ScanInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms scan interval, got %s", cfg.ScanInterval)
	}
}

func TestLoadFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_AGENTS", "not-a-number")
	t.Setenv("SCAN_INTERVAL", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MaxAgents != 50 {
		t.Errorf("expected fallback max agents 50, got %d", cfg.MaxAgents)
	}

	if cfg.ScanInterval != 5*time.Second {
		t.Errorf("expected fallback scan interval 5s, got %s", cfg.ScanInterval)
	}
}

func TestAgentConfig_Validate(t *testing.T) {
	cfg := validAgentConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := validAgentConfig()
	bad.ExecutionMode = "yolo"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown execution mode")
	}

	bad = validAgentConfig()
	bad.MaxTradeSize = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero max trade size")
	}

	bad = validAgentConfig()
	bad.MinTradeSize = bad.MaxTradeSize + 1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for min above max")
	}

	bad = validAgentConfig()
	bad.UnwindMaxPolls = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero unwind polls")
	}
}

func TestConfig_Validate_StorageMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "etcd")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("expected error for unsupported storage mode")
	}
}
