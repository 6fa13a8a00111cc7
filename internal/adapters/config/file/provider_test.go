package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/agentgate/internal/config"
)

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Error("NewProvider(\"\") error = nil, want error")
	}
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 18651\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Close()

	cfg, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 18651 {
		t.Errorf("port = %d, want 18651", cfg.Server.Port)
	}
	if p.Current() != cfg {
		t.Error("Current() should return the loaded config")
	}
}

func TestProvider_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 18652\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewProvider(path, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 18653\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Server.Port == 18653 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
