package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from strings like "3s" in
// yaml, json, and toml config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the plain time.Duration value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds runtime parameters for the coordinator.
// Zero values mean "unspecified" in a loaded file and are replaced by the
// built-in defaults via Overlay; the struct is treated as immutable once
// validated and passed into constructors.
type Config struct {
	// ServiceName is the systemd unit holding the GPU for inference.
	ServiceName string `json:"service_name" yaml:"service_name" toml:"service_name"`
	// PollInterval is the delay between process-table checks.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	// GracePeriod is how long contention must persist before the service
	// is stopped. Short-lived jobs inside this window are tolerated.
	GracePeriod Duration `json:"grace_period" yaml:"grace_period" toml:"grace_period"`
	// SettleDelayAfterStop is the pause after a successful stop, giving the
	// driver time to release device memory before a batch job claims it.
	SettleDelayAfterStop Duration `json:"settle_delay_after_stop" yaml:"settle_delay_after_stop" toml:"settle_delay_after_stop"`
	// SettleDelayAfterClear is the pause between contention clearing and the
	// service restart, giving the departing job time to fully exit.
	SettleDelayAfterClear Duration `json:"settle_delay_after_clear" yaml:"settle_delay_after_clear" toml:"settle_delay_after_clear"`
	// LiteralPatterns are exact substrings matched against full command lines.
	LiteralPatterns []string `json:"literal_patterns" yaml:"literal_patterns" toml:"literal_patterns"`
	// KeywordStems are case-insensitive substrings matched against command lines.
	KeywordStems []string `json:"keyword_stems" yaml:"keyword_stems" toml:"keyword_stems"`
	// OpsAddr, when set, enables the HTTP ops listener (/healthz, /status,
	// /metrics) on that address. Empty disables it.
	OpsAddr string `json:"ops_addr" yaml:"ops_addr" toml:"ops_addr"`
	// LogLevel is one of debug|info|warn|error.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the built-in configuration. These mirror the values the
// coordinator has always shipped with; a config file overrides them field-wise.
func Default() Config {
	return Config{
		ServiceName:           "vllm.service",
		PollInterval:          Duration(3 * time.Second),
		GracePeriod:           Duration(8 * time.Second),
		SettleDelayAfterStop:  Duration(3 * time.Second),
		SettleDelayAfterClear: Duration(2 * time.Second),
		LiteralPatterns: []string{
			"rdb",
			"python -m rdb",
			"embedding",
			"indexing",
			"trainer",
			"finetune",
		},
		KeywordStems: []string{"embed", "index", "build", "train", "finetune"},
		LogLevel:     "info",
	}
}

// Overlay returns a copy of c with every specified (non-zero) field of o
// applied on top.
func (c Config) Overlay(o Config) Config {
	if o.ServiceName != "" {
		c.ServiceName = o.ServiceName
	}
	if o.PollInterval != 0 {
		c.PollInterval = o.PollInterval
	}
	if o.GracePeriod != 0 {
		c.GracePeriod = o.GracePeriod
	}
	if o.SettleDelayAfterStop != 0 {
		c.SettleDelayAfterStop = o.SettleDelayAfterStop
	}
	if o.SettleDelayAfterClear != 0 {
		c.SettleDelayAfterClear = o.SettleDelayAfterClear
	}
	if o.LiteralPatterns != nil {
		c.LiteralPatterns = o.LiteralPatterns
	}
	if o.KeywordStems != nil {
		c.KeywordStems = o.KeywordStems
	}
	if o.OpsAddr != "" {
		c.OpsAddr = o.OpsAddr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	return c
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Std())
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative, got %s", c.GracePeriod.Std())
	}
	if c.SettleDelayAfterStop < 0 {
		return fmt.Errorf("settle_delay_after_stop must not be negative, got %s", c.SettleDelayAfterStop.Std())
	}
	if c.SettleDelayAfterClear < 0 {
		return fmt.Errorf("settle_delay_after_clear must not be negative, got %s", c.SettleDelayAfterClear.Std())
	}
	return nil
}
