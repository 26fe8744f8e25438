package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"COHESION_ADDR", "COHESION_SERVER", "COHESION_ROOM", "STUN_SERVER", "TURN_SERVER", "PISTON_URL"} {
		t.Setenv(key, "")
	}
	cfg := Load(Options{})

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.Room != DefaultRoom {
		t.Errorf("Room = %q, want %q", cfg.Room, DefaultRoom)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Errorf("STUNServer = %q, want %q", cfg.STUNServer, DefaultSTUN)
	}
	if cfg.ExecuteTimeout != DefaultExecuteTimeout {
		t.Errorf("ExecuteTimeout = %v, want %v", cfg.ExecuteTimeout, DefaultExecuteTimeout)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("COHESION_SERVER", "ws://env.example:9000/ws")
	t.Setenv("COHESION_ROOM", "env-room")

	cfg := Load(Options{})
	if cfg.ServerURL != "ws://env.example:9000/ws" {
		t.Errorf("ServerURL = %q, want env value", cfg.ServerURL)
	}
	if cfg.Room != "env-room" {
		t.Errorf("Room = %q, want env value", cfg.Room)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("COHESION_SERVER", "ws://env.example:9000/ws")
	t.Setenv("STUN_SERVER", "stun:env.example:3478")

	cfg := Load(Options{
		ServerURL:  "ws://flag.example:7000/ws",
		STUNServer: "stun:flag.example:3478",
	})
	if cfg.ServerURL != "ws://flag.example:7000/ws" {
		t.Errorf("ServerURL = %q, want flag value", cfg.ServerURL)
	}
	if cfg.STUNServer != "stun:flag.example:3478" {
		t.Errorf("STUNServer = %q, want flag value", cfg.STUNServer)
	}
}

func TestRoomURL(t *testing.T) {
	cfg := &Config{ServerURL: "ws://host:8080/ws", Room: "main"}

	if got := cfg.RoomURL(""); got != "ws://host:8080/ws?room=main" {
		t.Errorf("RoomURL(\"\") = %q", got)
	}
	if got := cfg.RoomURL("team a"); got != "ws://host:8080/ws?room=team+a" {
		t.Errorf("RoomURL with space = %q", got)
	}
}

func TestTURNServers(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetTURNServers(); got != nil {
		t.Errorf("GetTURNServers = %v, want nil when unset", got)
	}

	cfg = &Config{TURNServer: "turn:relay.example:3478", TURNUser: "u", TURNPass: "p"}
	servers := cfg.GetTURNServers()
	if len(servers) != 1 || servers[0] != "turn:relay.example:3478" {
		t.Errorf("GetTURNServers = %v", servers)
	}
	user, pass := cfg.GetTURNCredentials()
	if user != "u" || pass != "p" {
		t.Errorf("credentials = %q/%q", user, pass)
	}
}
