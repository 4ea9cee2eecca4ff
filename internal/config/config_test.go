package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Fatalf("window = %dx%d, want 800x600", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Render.WaitIdlePerFrame {
		t.Fatalf("wait_idle_per_frame should default to true")
	}
	if cfg.Assets.Shaders.Compute != "spv/Compute/exam.spv" {
		t.Fatalf("compute shader = %q", cfg.Assets.Shaders.Compute)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	path := writeFile(t, `
window:
  width: 1024
render:
  vsync: true
  max_msaa: 4
  wait_idle_per_frame: false
assets:
  root: /data/game
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Width != 1024 || cfg.Window.Height != 600 {
		t.Fatalf("window = %dx%d, want 1024x600", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Render.VSync || cfg.Render.MaxMSAA != 4 || cfg.Render.WaitIdlePerFrame {
		t.Fatalf("render = %+v", cfg.Render)
	}
	if got := cfg.Path("models/bottom.obj"); got != "/data/game/models/bottom.obj" {
		t.Fatalf("Path = %q", got)
	}
	if cfg.Assets.Shaders.UIVert != "spv/UI/vert.spv" {
		t.Fatalf("unset shader path lost its default: %q", cfg.Assets.Shaders.UIVert)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero width", "window:\n  width: 0\n"},
		{"msaa not power of two", "render:\n  max_msaa: 3\n"},
		{"msaa too large", "render:\n  max_msaa: 128\n"},
		{"bad level", "log_level: loud\n"},
		{"queue priority above one", "render:\n  queue_priority: 1.5\n"},
		{"short version", "app:\n  version: \"1.2\"\n"},
		{"bad yaml", "window: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestValidationEnvOverride(t *testing.T) {
	t.Setenv("VK_VALIDATION", "0")
	if Default().Render.Validation {
		t.Fatalf("VK_VALIDATION=0 should disable validation")
	}
	t.Setenv("VK_VALIDATION", "1")
	cfg, err := Load(writeFile(t, "render:\n  validation: false\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Render.Validation {
		t.Fatalf("VK_VALIDATION=1 should win over the file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestSemVer(t *testing.T) {
	tests := []struct {
		in                  string
		major, minor, patch uint32
		ok                  bool
	}{
		{"1.0.0", 1, 0, 0, true},
		{"v2.13.7", 2, 13, 7, true},
		{"1.0", 0, 0, 0, false},
		{"1.x.0", 0, 0, 0, false},
		{"", 0, 0, 0, false},
	}
	for _, tt := range tests {
		major, minor, patch, err := App{Version: tt.in}.SemVer()
		if (err == nil) != tt.ok {
			t.Errorf("SemVer(%q) err = %v", tt.in, err)
			continue
		}
		if major != tt.major || minor != tt.minor || patch != tt.patch {
			t.Errorf("SemVer(%q) = %d.%d.%d", tt.in, major, minor, patch)
		}
	}
}
