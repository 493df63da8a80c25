package main

import (
	"testing"

	"go.uber.org/zap"

	"github.com/auricle-audio/auricle/internal/auricled"
)

func TestWebradioDriverConfigPrefersOwnKeys(t *testing.T) {
	cfg := auricled.Config{}
	cfg.Modules.RendererLocal.Pipeline = "playbin uri={url}"
	cfg.Modules.RendererLocal.Device = "hw:0,0"
	cfg.Modules.WebRadio.Pipeline = "playbin uri={url} buffer-duration=2000000000"

	pipeline, device := webradioDriverConfig(cfg, zap.NewNop())
	if pipeline != "playbin uri={url} buffer-duration=2000000000" || device != "" {
		t.Fatalf("expected webradio keys to win, got %q %q", pipeline, device)
	}
}

func TestWebradioDriverConfigFallsBackToRendererLocal(t *testing.T) {
	cfg := auricled.Config{}
	cfg.Modules.RendererLocal.Pipeline = "playbin uri={url}"
	cfg.Modules.RendererLocal.Device = "hw:0,0"

	pipeline, device := webradioDriverConfig(cfg, zap.NewNop())
	if pipeline != "playbin uri={url}" || device != "hw:0,0" {
		t.Fatalf("expected renderer_local fallback, got %q %q", pipeline, device)
	}
}
