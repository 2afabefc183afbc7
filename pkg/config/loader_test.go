package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigEnv(t *testing.T) {
	var out CoordinatorConfig

	_ = os.Setenv("LAYZEE_MATCHMAKING_MAXTAGS", "3")
	_ = os.Setenv("LAYZEE_NEARBY_STORETIMEOUT", "5s")
	defer func() { _ = os.Unsetenv("LAYZEE_MATCHMAKING_MAXTAGS") }()
	defer func() { _ = os.Unsetenv("LAYZEE_NEARBY_STORETIMEOUT") }()

	if err := LoadConfig(&out, ""); err != nil {
		t.Fatal(err)
	}

	if out.Matchmaking.MaxTags != 3 {
		t.Errorf("max tags %v is not 3", out.Matchmaking.MaxTags)
	}
	if out.Nearby.StoreTimeout != 5*time.Second {
		t.Errorf("store timeout %v is not 5s", out.Nearby.StoreTimeout)
	}
}

func TestConfigFile(t *testing.T) {
	var out CoordinatorConfig
	if err := LoadConfig(&out, "../../configs"); err != nil {
		t.Fatal(err)
	}
	if out.Nearby.DefaultRadius != 100000 {
		t.Errorf("default radius %v is not 100000", out.Nearby.DefaultRadius)
	}
	if out.Nearby.TTL != time.Hour {
		t.Errorf("ttl %v is not 1h", out.Nearby.TTL)
	}
	if len(out.Webrtc.IceServers) == 0 {
		t.Errorf("no ice servers")
	}
}

func TestConfigDefaults(t *testing.T) {
	var out CoordinatorConfig
	if err := LoadConfigEnv(&out); err != nil {
		t.Fatal(err)
	}
	if out.Coordinator.Server.Address != ":8000" {
		t.Errorf("address %v is not :8000", out.Coordinator.Server.Address)
	}
	if out.Nearby.Store != StoreMemory {
		t.Errorf("store %v is not %v", out.Nearby.Store, StoreMemory)
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: ""},
		{args: []string{"--c-conf", "/etc/layzee"}, want: "/etc/layzee"},
		{args: []string{"--address", ":9000", "--c-conf=/tmp"}, want: "/tmp"},
		{args: []string{"--debug"}, want: ""},
	}
	for _, test := range tests {
		if got := configPath(test.args); got != test.want {
			t.Errorf("configPath(%v) = %v, want %v", test.args, got, test.want)
		}
	}
}
