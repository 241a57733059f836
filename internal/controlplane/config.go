package controlplane

import "time"

const DefaultAddr = "127.0.0.1:7420"

// Config contains configuration for the control plane server
type Config struct {
	Addr      string        // Address to bind the control plane server
	AuthToken string        // Access token for the /v1 routes; empty disables auth
	RateLimit int           // Requests per second per client; zero uses the default
	Timeout   time.Duration // Graceful shutdown deadline; zero uses the default
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Addr == "" {
		out.Addr = DefaultAddr
	}
	if out.RateLimit <= 0 {
		out.RateLimit = 20
	}
	if out.Timeout <= 0 {
		out.Timeout = 5 * time.Second
	}
	return &out
}
