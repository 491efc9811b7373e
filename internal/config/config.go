package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for nudge.
type Config struct {
	Timezone  string          `json:"timezone"`
	Store     StoreConfig     `json:"store"`
	Gateway   GatewayConfig   `json:"gateway"`
	Events    EventsConfig    `json:"events"`
	Reminders RemindersConfig `json:"reminders"`
	Transport TransportConfig `json:"transport"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Driver string `json:"driver"` // "file", "sqlite" or "memory"
	Path   string `json:"path"`   // default: $NUDGE_PATH/state.json or state.db
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// BaseURL returns the http URL clients use to reach the gateway.
func (g GatewayConfig) BaseURL() string {
	return "http://" + g.Addr()
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogDir     string `json:"log_dir"` // default: $NUDGE_PATH/logs
}

// RemindersConfig tunes reminder timings. Clock values are "HH:MM" in Timezone.
type RemindersConfig struct {
	MorningOf        string   `json:"morning_of"`
	NightlyAt        string   `json:"nightly_at"`
	WeeklyFirstDelay Duration `json:"weekly_first_delay"`
	WeeklyInterval   Duration `json:"weekly_interval"`
}

// TransportConfig holds the credential shared with the chat front-end.
// Token may be an ENC[age:...] blob.
type TransportConfig struct {
	Token string `json:"token,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
