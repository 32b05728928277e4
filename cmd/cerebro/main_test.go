package main

import (
	"testing"

	"github.com/nidhogg/cerebro-cortex/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg     config.LogConfig
		wantErr bool
	}{
		{config.LogConfig{Level: "debug", Format: "console"}, false},
		{config.LogConfig{Level: "warn", Format: "json"}, false},
		{config.LogConfig{}, false},
		{config.LogConfig{Level: "loud"}, true},
	}
	for _, tt := range tests {
		logger, err := newLogger(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%+v) err = %v", tt.cfg, err)
		}
		if err == nil && logger == nil {
			t.Errorf("newLogger(%+v) returned nil logger", tt.cfg)
		}
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("CEREBRO_CONFIG", "")
	rootCmd.SetArgs(append([]string{"--tenant", "cli-test"}, args...))
	return rootCmd.Execute()
}

func TestCommandsWithoutBackends(t *testing.T) {
	if err := execute(t, "remember", "--agent", "AZOTH", "User's name is Alex, please remember this fact"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := execute(t, "recall", "what is the user's name?"); err != nil {
		t.Fatalf("recall: %v", err)
	}
	if err := execute(t, "stats"); err != nil {
		t.Fatalf("stats: %v", err)
	}
}

func TestAssociateRejectsUnknownType(t *testing.T) {
	if err := execute(t, "associate", "a", "b", "bogus_type"); err == nil {
		t.Error("expected validation error")
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	if err := execute(t, "migrate"); err == nil {
		t.Error("expected error without a dsn")
	}
}
