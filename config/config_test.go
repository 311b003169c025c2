package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.MaxSimultaneousNotes != DefaultMaxSimultaneousNotes {
		t.Errorf("MaxSimultaneousNotes = %d, want %d", c.MaxSimultaneousNotes, DefaultMaxSimultaneousNotes)
	}
	if c.MaxSustainPedals != DefaultMaxSustainPedals {
		t.Errorf("MaxSustainPedals = %d, want %d", c.MaxSustainPedals, DefaultMaxSustainPedals)
	}
	if c.Verbose {
		t.Errorf("Verbose = true, want false by default")
	}
}

func TestConfigPathUnderHomeConfigDir(t *testing.T) {
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if path == "" {
		t.Fatal("ConfigPath returned empty string")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	if want := filepath.Join(home, ".config", "mididings", "config.json"); path != want {
		t.Errorf("ConfigPath() = %q, want %q", path, want)
	}
}
