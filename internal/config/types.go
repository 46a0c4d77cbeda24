package config

import "time"

type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway" json:"gateway"`
	Platform PlatformConfig `yaml:"platform" json:"platform"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Janitor  JanitorConfig  `yaml:"janitor" json:"janitor"`
}

type GatewayConfig struct {
	Port int        `yaml:"port" json:"port"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token"`
}

// PlatformConfig points at the property-management backend.
type PlatformConfig struct {
	BaseURL string `yaml:"baseURL" json:"baseURL"`
	Token   string `yaml:"token" json:"token"` // bearer token for the tenant account
}

// SyncConfig controls the polling cadences. All values are milliseconds;
// zero means "use default".
type SyncConfig struct {
	PollIntervalMS       int `yaml:"pollIntervalMs" json:"pollIntervalMs"`             // chat list re-fetch (default 2000)
	AttachmentIntervalMS int `yaml:"attachmentIntervalMs" json:"attachmentIntervalMs"` // attachment metadata, selected chat only (default 10000)
	InitialDelayMS       int `yaml:"initialDelayMs" json:"initialDelayMs"`             // delay before the first polled cycle (default 500)
	BackoffFloorMS       int `yaml:"backoffFloorMs" json:"backoffFloorMs"`             // minimum 429 backoff window (default 30000)
}

func (s SyncConfig) PollInterval() time.Duration       { return msOr(s.PollIntervalMS, 2000) }
func (s SyncConfig) AttachmentInterval() time.Duration { return msOr(s.AttachmentIntervalMS, 10000) }
func (s SyncConfig) InitialDelay() time.Duration       { return msOr(s.InitialDelayMS, 500) }
func (s SyncConfig) BackoffFloor() time.Duration       { return msOr(s.BackoffFloorMS, 30000) }

func msOr(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

// JanitorConfig holds cron expressions for background housekeeping.
type JanitorConfig struct {
	BlobSweep  string `yaml:"blobSweep" json:"blobSweep"`   // sweep orphaned attachment blobs (default hourly)
	CacheFlush string `yaml:"cacheFlush" json:"cacheFlush"` // flush the session cache snapshot (default every 5 min)
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port: 19620,
		},
		Platform: PlatformConfig{
			BaseURL: "http://localhost:8080",
		},
		Sync: SyncConfig{},
		Janitor: JanitorConfig{
			BlobSweep:  "0 0 * * * *",
			CacheFlush: "0 */5 * * * *",
		},
	}
}
