// Package config loads the engine settings from a YAML file layered over
// built-in defaults.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Window struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// App identifies the application and engine to the Vulkan driver.
type App struct {
	Name    string `yaml:"name"`
	Engine  string `yaml:"engine"`
	Version string `yaml:"version"`
}

type Render struct {
	Validation       bool    `yaml:"validation"`
	QueuePriority    float32 `yaml:"queue_priority"`
	VSync            bool    `yaml:"vsync"`
	MaxMSAA          int     `yaml:"max_msaa"`
	MaxLod           float32 `yaml:"max_lod"`
	WaitIdlePerFrame bool    `yaml:"wait_idle_per_frame"`
	HUD              bool    `yaml:"hud"`
}

type Shaders struct {
	ObjectVert  string `yaml:"object_vert"`
	ObjectFrag  string `yaml:"object_frag"`
	Compute     string `yaml:"compute"`
	UIVert      string `yaml:"ui_vert"`
	UIFrag      string `yaml:"ui_frag"`
	OverlayVert string `yaml:"overlay_vert"`
	OverlayFrag string `yaml:"overlay_frag"`
}

type Assets struct {
	Root    string  `yaml:"root"`
	Shaders Shaders `yaml:"shaders"`
}

type Config struct {
	App      App    `yaml:"app"`
	Window   Window `yaml:"window"`
	Render   Render `yaml:"render"`
	Assets   Assets `yaml:"assets"`
	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		App: App{
			Name:    "kube",
			Engine:  "Kube",
			Version: "1.0.0",
		},
		Window: Window{
			Width:  800,
			Height: 600,
			Title:  "Kube Vulkan",
		},
		Render: Render{
			Validation:       validationFromEnv(true),
			QueuePriority:    1,
			MaxMSAA:          64,
			MaxLod:           16,
			WaitIdlePerFrame: true,
		},
		Assets: Assets{
			Root: ".",
			Shaders: Shaders{
				ObjectVert:  "spv/GameObject/vert.spv",
				ObjectFrag:  "spv/GameObject/base.spv",
				Compute:     "spv/Compute/exam.spv",
				UIVert:      "spv/UI/vert.spv",
				UIFrag:      "spv/UI/frag.spv",
				OverlayVert: "shaders/overlay_vert.spv",
				OverlayFrag: "shaders/overlay_frag.spv",
			},
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.Render.Validation = validationFromEnv(cfg.Render.Validation)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Render.MaxMSAA < 1 || c.Render.MaxMSAA&(c.Render.MaxMSAA-1) != 0 || c.Render.MaxMSAA > 64 {
		return errors.Errorf("max_msaa must be a power of two in [1,64], got %d", c.Render.MaxMSAA)
	}
	if c.Render.QueuePriority < 0 || c.Render.QueuePriority > 1 {
		return errors.Errorf("queue_priority must be in [0,1], got %v", c.Render.QueuePriority)
	}
	if _, _, _, err := c.App.SemVer(); err != nil {
		return err
	}
	if c.Render.MaxLod < 0 {
		return errors.Errorf("max_lod must not be negative, got %v", c.Render.MaxLod)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SemVer splits Version into its major, minor and patch numbers.
func (a App) SemVer() (major, minor, patch uint32, err error) {
	parts := strings.Split(strings.TrimPrefix(a.Version, "v"), ".")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Errorf("version %q is not major.minor.patch", a.Version)
	}
	var n [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, 0, 0, errors.Wrapf(err, "version %q", a.Version)
		}
		n[i] = uint32(v)
	}
	return n[0], n[1], n[2], nil
}

// Path resolves an asset path against the assets root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Assets.Root, p)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log level %q", s)
}

// validationFromEnv lets VK_VALIDATION override the configured value.
func validationFromEnv(def bool) bool {
	val := os.Getenv("VK_VALIDATION")
	if val == "" {
		return def
	}
	switch val {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}
