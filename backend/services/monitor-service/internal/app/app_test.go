package app

import (
	"context"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/config"
)

func TestNewWithMemoryStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverMemory
	cfg.Auth.JWTSecret = "secret"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.Topic = "sensors/+/datapoints"

	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.db != nil || a.redis != nil {
		t.Fatal("memory config must not open external stores")
	}
	if a.mqtt == nil {
		t.Fatal("mqtt subscriber not configured")
	}
	if a.hub.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", a.hub.Subscribers())
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://dashboard.local/"})

	cases := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "api.local", true},
		{"http://dashboard.local", "api.local", true},
		{"http://evil.local", "api.local", false},
		{"http://api.local", "api.local", true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "http://"+tc.host+"/api/sensors/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := check(r); got != tc.want {
			t.Fatalf("origin %q host %q = %v, want %v", tc.origin, tc.host, got, tc.want)
		}
	}
}
