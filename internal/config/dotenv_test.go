package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverlaysEnvironment(t *testing.T) {
	t.Setenv("SUBMISSION_SECONDS", "45")
	t.Setenv("PICKING_SECONDS", "0")
	t.Setenv("ICE_SERVERS", "stun:a.example:3478,turn:b.example:3478")
	t.Setenv("FALLBACK_QUESTION", "All out")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SubmissionSeconds != 45 {
		t.Fatalf("expected 45, got %d", cfg.SubmissionSeconds)
	}
	if cfg.PickingSeconds != 30 {
		t.Fatalf("expected non-positive value to fall back to 30, got %d", cfg.PickingSeconds)
	}
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[1] != "turn:b.example:3478" {
		t.Fatalf("unexpected ice servers %v", cfg.ICEServers)
	}
	gameCfg := cfg.Game()
	if gameCfg.SubmissionTime != 45*time.Second || gameCfg.OutOfQuestionsText != "All out" {
		t.Fatalf("unexpected game config %#v", gameCfg)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("HAND_SIZE", "seven")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MIN_PLAYERS=4\nMAX_PLAYERS=6\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MIN_PLAYERS", "5")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MAX_PLAYERS") })
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MinPlayers != 5 || cfg.MaxPlayers != 6 {
		t.Fatalf("expected 5/6, got %d/%d", cfg.MinPlayers, cfg.MaxPlayers)
	}
}
