package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGameConfigIsValid(t *testing.T) {
	if err := DefaultGameConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseGameConfigOverridesDefaults(t *testing.T) {
	content := []byte(`
bank:
  transfer_fee: 0.1
scheduler:
  periods:
    rankings: 45
`)
	cfg := DefaultGameConfig()
	if err := ParseGameConfig(content, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Bank.TransferFee != 0.1 {
		t.Errorf("TransferFee = %v, want 0.1", cfg.Bank.TransferFee)
	}
	if cfg.Bank.InterestRate != 0.001 {
		t.Errorf("InterestRate = %v, want default 0.001", cfg.Bank.InterestRate)
	}
	if got := cfg.Scheduler.Periods[TaskRankings]; got != 45 {
		t.Errorf("rankings period = %d, want 45", got)
	}
	if got := cfg.Scheduler.Periods[TaskTurns]; got != 2 {
		t.Errorf("turns period = %d, want default 2", got)
	}
}

func TestParseGameConfigRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "bank:\n  overdraft: 5\n"},
		{"zero capacity", "commodities:\n  ore: { base_price: 11, elasticity: 5, capacity: 0 }\n"},
		{"mine cap above 100", "combat:\n  mine_hit_cap: 120\n"},
		{"unknown default class", "game:\n  default_class: freighter\n"},
		{"zero period", "scheduler:\n  periods:\n    tow: 0\n"},
		{"unbounded bank amount", "bank:\n  max_amount: 9000000000000000000\n"},
		{"zero bank amount", "bank:\n  max_amount: 0\n"},
		{"loan fee above principal", "bank:\n  loan_fee: 1.5\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ParseGameConfig([]byte(tc.content), DefaultGameConfig()); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoadGameConfigMissingFile(t *testing.T) {
	cfg, err := LoadGameConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Game.MaxTurns != 2500 {
		t.Errorf("MaxTurns = %d, want 2500", cfg.Game.MaxTurns)
	}
}

func TestLoadGameConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	if err := os.WriteFile(path, []byte("game:\n  max_turns: 3000\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadGameConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Game.MaxTurns != 3000 {
		t.Errorf("MaxTurns = %d, want 3000", cfg.Game.MaxTurns)
	}
}

func TestLevelValue(t *testing.T) {
	cfg := DefaultGameConfig()
	tests := []struct {
		level int
		base  float64
		want  int64
	}{
		{0, 100, 100},
		{1, 100, 150},
		{2, 100, 225},
		{3, 100, 338},
		{1, 500, 750},
	}

	for _, tc := range tests {
		if got := cfg.LevelValue(tc.level, tc.base); got != tc.want {
			t.Errorf("LevelValue(%d, %v) = %d, want %d", tc.level, tc.base, got, tc.want)
		}
	}
}
