package config

// Telemetry controls the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// RateLimit throttles the HTTP gateway per client.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Auth configures bearer-token verification for write routes.
type Auth struct {
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
	// ClockSkewSeconds is tolerated on exp/nbf checks.
	ClockSkewSeconds int `toml:"ClockSkewSeconds"`
}

// Enabled reports whether write routes can be authorised at all.
func (a Auth) Enabled() bool { return a.HMACSecret != "" }

// Logging mirrors observability/logging.Options.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Webhook forwards committed events to an external endpoint.
type Webhook struct {
	URL    string   `toml:"URL"`
	Secret string   `toml:"Secret"`
	Events []string `toml:"Events"`
}
