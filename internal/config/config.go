// Package config loads engine settings from a TOML file with sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can say "90s" or "1.5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type Generator struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type Social struct {
	WebhookURL string `toml:"webhook_url"`
}

type Config struct {
	Addr             string   `toml:"addr"`
	DBPath           string   `toml:"db_path"`
	RunSecret        string   `toml:"run_secret"`
	ScheduleInterval Duration `toml:"schedule_interval"`
	ExecutorCron     string   `toml:"executor_cron"`
	BatchLimit       int      `toml:"batch_limit"`
	ItemDelay        Duration `toml:"item_delay"`
	GenTimeout       Duration `toml:"gen_timeout"`
	PublishTimeout   Duration `toml:"publish_timeout"`
	SitemapTimeout   Duration `toml:"sitemap_timeout"`

	Generator Generator `toml:"generator"`
	Social    Social    `toml:"social"`
}

func Default() Config {
	return Config{
		Addr:             ":8080",
		DBPath:           "pressflow.db",
		ScheduleInterval: Duration{time.Minute},
		ExecutorCron:     "@hourly",
		BatchLimit:       50,
		ItemDelay:        Duration{1500 * time.Millisecond},
		GenTimeout:       Duration{60 * time.Second},
		PublishTimeout:   Duration{30 * time.Second},
		SitemapTimeout:   Duration{15 * time.Second},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file %s not found", path)
		}
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		return cfg, fmt.Errorf("unknown config key %q in %s", keys[0], path)
	}
	return cfg, nil
}
