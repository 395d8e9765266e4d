package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Band selects spectrum indices [Lo*size, Hi*size) and scales their sum by Weight.
type Band struct {
	Lo     float64 `yaml:"lo"`
	Hi     float64 `yaml:"hi"`
	Weight float64 `yaml:"weight"`
}

// RelayConfig describes the serial relay array.
type RelayConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Device   string  `yaml:"device"`
	Baud     int     `yaml:"baud"`
	Groups   [][]int `yaml:"groups"`   // relay channels owned by each bucket
	Constant []int   `yaml:"constant"` // always lit
}

// PanelConfig describes the KiNET LED panel.
type PanelConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // host:port
	Port    int    `yaml:"port"` // KiNET output port id
	Comp    int    `yaml:"comp"` // component offset for the right half
}

// BridgeConfig describes the color-bulb bridge.
type BridgeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	User       string `yaml:"user"`
	Group      int    `yaml:"group"`
	Lights     []int  `yaml:"lights"`
	Brightness int    `yaml:"brightness"`
	Transition int    `yaml:"transition"` // deciseconds
}

// Config holds all runtime configuration: defaults, then the YAML file, then env vars.
type Config struct {
	// Capture
	Source         string `yaml:"source"` // portaudio, file, webrtc
	File           string `yaml:"file"`
	Realtime       bool   `yaml:"realtime"` // pace file replay at the sample rate
	SampleRate     int    `yaml:"sample_rate"`
	PeriodSize     int    `yaml:"period_size"`
	PeriodsPerTick int    `yaml:"periods_per_tick"`

	// Signal chain
	Buckets     [][]Band  `yaml:"buckets"`
	TrendWindow int       `yaml:"trend_window"`
	TrendDegree int       `yaml:"trend_degree"`
	NormWindow  int       `yaml:"norm_window"`
	Thresholds  []float64 `yaml:"thresholds"`

	// Outputs
	Relay  RelayConfig  `yaml:"relay"`
	Panel  PanelConfig  `yaml:"panel"`
	Bridge BridgeConfig `yaml:"bridge"`

	// Server
	HTTPAddr string `yaml:"http_addr"`

	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration the original installation ran with.
func Default() Config {
	return Config{
		Source:         "portaudio",
		Realtime:       true,
		SampleRate:     8000,
		PeriodSize:     170,
		PeriodsPerTick: 1,
		Buckets: [][]Band{
			{{Lo: 0, Hi: 0.125, Weight: 1}},
			{{Lo: 0.125, Hi: 0.25, Weight: 1}},
			{{Lo: 0.25, Hi: 0.375, Weight: 1}},
			{{Lo: 0.375, Hi: 0.5, Weight: 1}},
		},
		TrendWindow: 100,
		TrendDegree: 2,
		NormWindow:  16000,
		Thresholds:  []float64{1.0, 1.5, 1.2, 1.2},
		Relay: RelayConfig{
			Enabled: true,
			Device:  "/dev/ttyACM0",
			Baud:    19200,
			Groups: [][]int{
				{7, 10, 18, 26, 27, 28},
				{1, 5, 12, 13, 15, 23, 30},
				{3, 4, 6, 21, 22, 24},
				{2, 9, 14, 16, 17, 25, 31},
			},
			Constant: []int{29},
		},
		Panel: PanelConfig{
			Addr: "lights-23.mit.edu:6038",
		},
		Bridge: BridgeConfig{
			URL:        "http://127.0.0.1",
			Group:      1,
			Lights:     []int{1, 2, 3},
			Brightness: 80,
			Transition: 2,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and LIGHTSHOW_* env vars.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Source = envStr("LIGHTSHOW_SOURCE", cfg.Source)
	cfg.File = envStr("LIGHTSHOW_FILE", cfg.File)
	cfg.Realtime = envBool("LIGHTSHOW_REALTIME", cfg.Realtime)
	cfg.SampleRate = envInt("LIGHTSHOW_SAMPLE_RATE", cfg.SampleRate)
	cfg.PeriodSize = envInt("LIGHTSHOW_PERIOD_SIZE", cfg.PeriodSize)
	cfg.PeriodsPerTick = envInt("LIGHTSHOW_PERIODS_PER_TICK", cfg.PeriodsPerTick)
	cfg.TrendWindow = envInt("LIGHTSHOW_TREND_WINDOW", cfg.TrendWindow)
	cfg.TrendDegree = envInt("LIGHTSHOW_TREND_DEGREE", cfg.TrendDegree)
	cfg.NormWindow = envInt("LIGHTSHOW_NORM_WINDOW", cfg.NormWindow)
	cfg.Thresholds = envFloats("LIGHTSHOW_THRESHOLDS", cfg.Thresholds)

	cfg.Relay.Enabled = envBool("LIGHTSHOW_RELAY", cfg.Relay.Enabled)
	cfg.Relay.Device = envStr("LIGHTSHOW_RELAY_DEVICE", cfg.Relay.Device)
	cfg.Relay.Baud = envInt("LIGHTSHOW_RELAY_BAUD", cfg.Relay.Baud)

	cfg.Panel.Enabled = envBool("LIGHTSHOW_PANEL", cfg.Panel.Enabled)
	cfg.Panel.Addr = envStr("LIGHTSHOW_PANEL_ADDR", cfg.Panel.Addr)
	cfg.Panel.Port = envInt("LIGHTSHOW_PANEL_PORT", cfg.Panel.Port)

	cfg.Bridge.Enabled = envBool("LIGHTSHOW_BRIDGE", cfg.Bridge.Enabled)
	cfg.Bridge.URL = envStr("LIGHTSHOW_BRIDGE_URL", cfg.Bridge.URL)
	cfg.Bridge.User = envStr("LIGHTSHOW_BRIDGE_USER", cfg.Bridge.User)
	cfg.Bridge.Group = envInt("LIGHTSHOW_BRIDGE_GROUP", cfg.Bridge.Group)

	cfg.HTTPAddr = envStr("LIGHTSHOW_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Verbose = envBool("LIGHTSHOW_VERBOSE", cfg.Verbose)

	return cfg, nil
}

// FrameSize is the number of samples the engine consumes per tick.
func (c Config) FrameSize() int {
	return c.PeriodSize * c.PeriodsPerTick
}

// TickDuration is the wall-clock time covered by one frame.
func (c Config) TickDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FrameSize()) * time.Second / time.Duration(c.SampleRate)
}

// Validate rejects configurations the signal chain cannot run with.
func (c Config) Validate() error {
	switch c.Source {
	case "portaudio":
	case "webrtc":
		if c.HTTPAddr == "" {
			return fmt.Errorf("source %q requires http_addr for the offer endpoint", c.Source)
		}
	case "file":
		if c.File == "" {
			return fmt.Errorf("source %q requires a file path", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.PeriodSize <= 0 || c.PeriodsPerTick <= 0 {
		return fmt.Errorf("period_size and periods_per_tick must be positive")
	}
	if len(c.Buckets) < 2 {
		// colorize reads beat and flair from the first two channels
		return fmt.Errorf("at least two buckets are required, got %d", len(c.Buckets))
	}
	for i, spec := range c.Buckets {
		if len(spec) == 0 {
			return fmt.Errorf("bucket %d has no bands", i)
		}
		for _, b := range spec {
			if b.Lo < 0 || b.Hi > 1 || b.Lo >= b.Hi {
				return fmt.Errorf("bucket %d: band [%g, %g) outside [0, 1]", i, b.Lo, b.Hi)
			}
		}
	}
	if c.TrendDegree < 1 {
		return fmt.Errorf("trend_degree must be at least 1, got %d", c.TrendDegree)
	}
	if c.TrendWindow < c.TrendDegree+2 {
		return fmt.Errorf("trend_window %d too short for degree %d", c.TrendWindow, c.TrendDegree)
	}
	if c.NormWindow <= 0 {
		return fmt.Errorf("norm_window must be positive, got %d", c.NormWindow)
	}
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("at least one threshold is required")
	}
	if c.Relay.Enabled && c.Relay.Device == "" {
		return fmt.Errorf("relay enabled without a device")
	}
	if c.Relay.Enabled && len(c.Relay.Groups) > 4 {
		return fmt.Errorf("relay has %d groups, at most 4 light states are assigned", len(c.Relay.Groups))
	}
	if c.Panel.Enabled && c.Panel.Addr == "" {
		return fmt.Errorf("panel enabled without an address")
	}
	if c.Panel.Port < 0 || c.Panel.Port > 255 {
		return fmt.Errorf("panel port %d out of range 0..255", c.Panel.Port)
	}
	if c.Bridge.Enabled && (c.Bridge.URL == "" || len(c.Bridge.Lights) == 0) {
		return fmt.Errorf("bridge enabled without a url or lights")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envFloats parses a comma-separated list. Any bad element falls back to the whole default.
func envFloats(key string, fallback []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fallback
		}
		out = append(out, f)
	}
	return out
}
