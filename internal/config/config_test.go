package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SALVATO_PRODUCTION_URL", "https://api.salvato.test/v1/")
	t.Setenv("SALVATO_CLIENT_ID", "client")
	t.Setenv("SALVATO_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Salvato.BaseURL != "https://api.salvato.test/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Salvato.BaseURL)
	}
	if cfg.Delivery != DeliveryStorage {
		t.Fatalf("expected storage delivery by default, got %q", cfg.Delivery)
	}
	if cfg.Storage.Folder != "/Salvato/Auction Lists" {
		t.Fatalf("unexpected default folder %q", cfg.Storage.Folder)
	}
	if cfg.Render.Workers != 2 {
		t.Fatalf("unexpected worker default %d", cfg.Render.Workers)
	}
	if cfg.Timeouts.Auth != 10*time.Second {
		t.Fatalf("unexpected auth timeout %s", cfg.Timeouts.Auth)
	}
}

func TestLoadDropboxRootFolder(t *testing.T) {
	setRequired(t)
	t.Setenv("DROPBOX_FOLDER", "/")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Folder != "" {
		t.Fatalf("expected root folder, got %q", cfg.Storage.Folder)
	}

	t.Setenv("DROPBOX_FOLDER", "/Lists/2026/")
	if cfg, _ = Load(""); cfg.Storage.Folder != "/Lists/2026" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Storage.Folder)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("SALVATO_PRODUCTION_URL", "https://api.salvato.test")
	t.Setenv("SALVATO_CLIENT_ID", "")
	t.Setenv("SALVATO_CLIENT_SECRET", "")
	_, err := Load("")
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "SALVATO_CLIENT_ID") || !strings.Contains(err.Error(), "SALVATO_CLIENT_SECRET") {
		t.Fatalf("expected both variable names in %q", err.Error())
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	setRequired(t)
	t.Setenv("DELIVERY_STRATEGY", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadYAMLOverlaidByEnv(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
delivery: workflow
plumsail:
  endpoint: https://api.plumsail.test/processes/a/b/start
render:
  workers: 4
  image_wait: 1s
timeouts:
  render: 90s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RENDER_WORKERS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Delivery != DeliveryWorkflow {
		t.Fatalf("expected workflow from file, got %q", cfg.Delivery)
	}
	if cfg.Plumsail.Endpoint != "https://api.plumsail.test/processes/a/b/start" {
		t.Fatalf("unexpected endpoint %q", cfg.Plumsail.Endpoint)
	}
	if cfg.Render.Workers != 3 {
		t.Fatalf("expected env to override workers, got %d", cfg.Render.Workers)
	}
	if cfg.Render.ImageWait != time.Second {
		t.Fatalf("unexpected image wait %s", cfg.Render.ImageWait)
	}
	if cfg.Timeouts.Render != 90*time.Second {
		t.Fatalf("unexpected render timeout %s", cfg.Timeouts.Render)
	}
}

func TestLoadMissingFile(t *testing.T) {
	setRequired(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("SALVATO_CLIENT_ID", "")
	t.Setenv("SALVATO_CLIENT_SECRET", "")
	t.Setenv("TEMPLATE_PATH", "/srv/templates/list.html")
	cfg, err := Read("")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cfg.Render.TemplatePath != "/srv/templates/list.html" {
		t.Fatalf("env not applied: %q", cfg.Render.TemplatePath)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing from Validate, got %v", err)
	}
}
