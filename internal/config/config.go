package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Default configuration values
const (
	DefaultListenAddr = ":8080"
	DefaultServerURL  = "ws://localhost:8080/ws"
	DefaultRoom       = "main"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultTURN       = "" // optional, empty by default

	DefaultExecuteTimeout = 12 * time.Second
)

// Config holds application configuration shared by the server and the
// terminal client.
type Config struct {
	// ListenAddr is where the relay server binds.
	ListenAddr string

	// ServerURL is the websocket endpoint the client dials.
	ServerURL string

	// Room is the room to join when none is given.
	Room string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Execution proxy settings. An empty endpoint selects the public
	// Piston instance.
	ExecuteEndpoint string
	ExecuteTimeout  time.Duration
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ListenAddr      string
	ServerURL       string
	Room            string
	STUNServer      string
	TURNServer      string
	TURNUser        string
	TURNPass        string
	ExecuteEndpoint string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) *Config {
	return &Config{
		ListenAddr:      pick(opts.ListenAddr, "COHESION_ADDR", DefaultListenAddr),
		ServerURL:       pick(opts.ServerURL, "COHESION_SERVER", DefaultServerURL),
		Room:            pick(opts.Room, "COHESION_ROOM", DefaultRoom),
		STUNServer:      pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:      pick(opts.TURNServer, "TURN_SERVER", DefaultTURN),
		TURNUser:        pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:        pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ExecuteEndpoint: pick(opts.ExecuteEndpoint, "PISTON_URL", ""),
		ExecuteTimeout:  DefaultExecuteTimeout,
	}
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// RoomURL returns the websocket URL carrying the room selection.
func (c *Config) RoomURL(room string) string {
	if room == "" {
		room = c.Room
	}
	return fmt.Sprintf("%s?room=%s", c.ServerURL, url.QueryEscape(room))
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{c.TURNServer}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
