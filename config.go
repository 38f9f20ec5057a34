package tomo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWork       = 25 * time.Minute
	DefaultShortBreak = 5 * time.Minute
	DefaultLongBreak  = 15 * time.Minute
	DefaultIntervals  = 4
)

// TimerConfig holds the durations driving one pomodoro cycle. After
// every Intervals-th completed work interval the long break runs instead
// of the short one.
type TimerConfig struct {
	Work       time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration
	Intervals  int
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		Work:       DefaultWork,
		ShortBreak: DefaultShortBreak,
		LongBreak:  DefaultLongBreak,
		Intervals:  DefaultIntervals,
	}
}

func (c TimerConfig) Validate() error {
	if c.Work <= 0 {
		return fmt.Errorf("%w: work duration must be positive, got %s", ErrConfiguration, c.Work)
	}
	if c.ShortBreak <= 0 {
		return fmt.Errorf("%w: short break duration must be positive, got %s", ErrConfiguration, c.ShortBreak)
	}
	if c.LongBreak <= 0 {
		return fmt.Errorf("%w: long break duration must be positive, got %s", ErrConfiguration, c.LongBreak)
	}
	if c.Intervals < 1 {
		return fmt.Errorf("%w: intervals must be at least 1, got %d", ErrConfiguration, c.Intervals)
	}
	return nil
}

// Duration returns the scheduled duration of phase p under c, or 0 for
// phases that have none.
func (c TimerConfig) Duration(p Phase) time.Duration {
	switch p {
	case PhaseWorking:
		return c.Work
	case PhaseShortBreak:
		return c.ShortBreak
	case PhaseLongBreak:
		return c.LongBreak
	default:
		return 0
	}
}

// ParseDuration accepts Go duration syntax ("25m", "1h30m") and bare
// minutes ("25").
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse duration %q", ErrConfiguration, s)
	}
	return d, nil
}

// Config is process-level configuration resolved from the environment.
// A .env file is honored when present.
type Config struct {
	DBPath          string
	TimerConfigPath string
	Debug           bool
	NoNotify        bool
}

func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:          os.Getenv("TOMO_DB_PATH"),
		TimerConfigPath: os.Getenv("TOMO_CONFIG_PATH"),
		Debug:           os.Getenv("TOMO_DEBUG") != "",
		NoNotify:        os.Getenv("TOMO_NO_NOTIFY") != "",
	}

	if cfg.DBPath == "" {
		p, err := defaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = p
	}
	if cfg.TimerConfigPath == "" {
		p, err := defaultTimerConfigPath()
		if err != nil {
			return Config{}, err
		}
		cfg.TimerConfigPath = p
	}

	return cfg, nil
}

func defaultDBPath() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: resolve home dir: %v", ErrConfiguration, err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "tomo", "sessions.db"), nil
}

func defaultTimerConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve user config dir: %v", ErrConfiguration, err)
	}
	return filepath.Join(dir, "tomo", "config.yaml"), nil
}

// timerConfigFile is the on-disk shape. Durations are strings so the
// file stays hand-editable ("25m", "1h", bare minutes).
type timerConfigFile struct {
	Work       string `yaml:"work"`
	ShortBreak string `yaml:"short_break"`
	LongBreak  string `yaml:"long_break"`
	Intervals  int    `yaml:"intervals"`
}

// LoadTimerConfig reads the timer config from path. A missing file
// yields the defaults; set fields override them individually.
func LoadTimerConfig(path string) (TimerConfig, error) {
	cfg := DefaultTimerConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: read timer config: %v", ErrConfiguration, err)
	}

	var f timerConfigFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return cfg, fmt.Errorf("%w: parse timer config: %v", ErrConfiguration, err)
	}
	if err := applyTimerConfigFile(&cfg, f); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func SaveTimerConfig(path string, cfg TimerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create config directory: %v", ErrConfiguration, err)
	}

	f := timerConfigFile{
		Work:       cfg.Work.String(),
		ShortBreak: cfg.ShortBreak.String(),
		LongBreak:  cfg.LongBreak.String(),
		Intervals:  cfg.Intervals,
	}
	raw, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: marshal timer config: %v", ErrConfiguration, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write timer config: %v", ErrConfiguration, err)
	}

	return nil
}

func applyTimerConfigFile(cfg *TimerConfig, f timerConfigFile) error {
	if f.Work != "" {
		d, err := ParseDuration(f.Work)
		if err != nil {
			return err
		}
		cfg.Work = d
	}
	if f.ShortBreak != "" {
		d, err := ParseDuration(f.ShortBreak)
		if err != nil {
			return err
		}
		cfg.ShortBreak = d
	}
	if f.LongBreak != "" {
		d, err := ParseDuration(f.LongBreak)
		if err != nil {
			return err
		}
		cfg.LongBreak = d
	}
	if f.Intervals > 0 {
		cfg.Intervals = f.Intervals
	}
	return nil
}
