package config

import (
	"errors"
	"flag"
	"os"
	"testing"
	"time"
)

func setCommandFlags(args []string) {
	// Reset the flag set to avoid interference between tests.
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{"ruping"}, args...)
}

func TestLoad(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	}()

	tests := []struct {
		name        string
		args        []string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:        "missing targets",
			args:        []string{},
			expectError: true,
		},
		{
			name: "defaults",
			args: []string{"8.8.8.8"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Count != DefaultCount {
					t.Errorf("Count = %d, want %d", cfg.Count, DefaultCount)
				}
				if cfg.Size != DefaultSize {
					t.Errorf("Size = %d, want %d", cfg.Size, DefaultSize)
				}
				if cfg.Timeout != DefaultTimeout {
					t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
				}
				if cfg.Interval != DefaultInterval {
					t.Errorf("Interval = %v, want %v", cfg.Interval, DefaultInterval)
				}
				if cfg.Format != "text" || cfg.Output != "" {
					t.Errorf("Format/Output = %q/%q, want text/stdout", cfg.Format, cfg.Output)
				}
				if len(cfg.Targets) != 1 || cfg.Targets[0] != "8.8.8.8" {
					t.Errorf("Targets = %v, want [8.8.8.8]", cfg.Targets)
				}
			},
		},
		{
			name: "continuous overrides count",
			args: []string{"-t", "-n", "7", "8.8.8.8"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Count != 0 {
					t.Errorf("Count = %d, want 0 in continuous mode", cfg.Count)
				}
			},
		},
		{
			name: "file-only target source is allowed",
			args: []string{"-file", "targets.txt"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.TargetFile != "targets.txt" {
					t.Errorf("TargetFile = %q", cfg.TargetFile)
				}
			},
		},
		{
			name:        "zero count",
			args:        []string{"-n", "0", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "oversized payload",
			args:        []string{"-l", "70000", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "zero timeout",
			args:        []string{"-w", "0", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "TTL above 255",
			args:        []string{"-i", "256", "8.8.8.8"},
			expectError: true,
		},
		{
			name: "TTL in range",
			args: []string{"-i", "64", "8.8.8.8"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.TTL != 64 {
					t.Errorf("TTL = %d, want 64", cfg.TTL)
				}
			},
		},
		{
			name:        "both families forced",
			args:        []string{"-4", "-6", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "zero workers",
			args:        []string{"-worker", "0", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "negative rate",
			args:        []string{"-rate", "-1", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "bad source address",
			args:        []string{"-S", "not-an-ip", "8.8.8.8"},
			expectError: true,
		},
		{
			name:        "unknown format",
			args:        []string{"-format", "xml", "8.8.8.8"},
			expectError: true,
		},
		{
			name: "deadline flag",
			args: []string{"-deadline", "30", "8.8.8.8"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Deadline != 30*time.Second {
					t.Errorf("Deadline = %v, want 30s", cfg.Deadline)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCommandFlags(tt.args)
			cfg, err := Load()
			if tt.expectError {
				if err == nil {
					t.Fatalf("Load(%v) succeeded, want error", tt.args)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v is not an ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load(%v): %v", tt.args, err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
