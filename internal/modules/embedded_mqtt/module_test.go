package embeddedmqtt

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewModuleDefaults(t *testing.T) {
	module, err := NewModule(zap.NewNop(), Config{AllowAnonymous: true})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	if module.config.Listen != "127.0.0.1:1883" {
		t.Fatalf("unexpected default listen %q", module.config.Listen)
	}
}

func TestNewModuleRequiresAuth(t *testing.T) {
	if _, err := NewModule(zap.NewNop(), Config{}); err == nil {
		t.Fatal("anonymous access must be explicit")
	}
}

func TestNewModuleUserAuth(t *testing.T) {
	if _, err := NewModule(zap.NewNop(), Config{Username: "auricle", Password: "secret"}); err != nil {
		t.Fatalf("user auth setup failed: %v", err)
	}
}

func TestBrokerURL(t *testing.T) {
	if got := BrokerURL("127.0.0.1:1883", false); got != "mqtt://127.0.0.1:1883" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := BrokerURL("0.0.0.0:8883", true); got != "mqtts://0.0.0.0:8883" {
		t.Fatalf("unexpected tls url %s", got)
	}
}
