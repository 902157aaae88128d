package main

import (
	"strings"
	"testing"

	"github.com/harunnryd/callscribe/pkg/scribe"
	mocktransport "github.com/harunnryd/callscribe/pkg/transports/mock"
	twiliotransport "github.com/harunnryd/callscribe/pkg/transports/twilio"
)

func sttConfig(provider string, settings map[string]any) scribe.Config {
	return scribe.Config{Vendors: scribe.VendorsConfig{STT: scribe.VendorConfig{Provider: provider, Settings: settings}}}
}

func TestDeepgramProviderValidatesSettings(t *testing.T) {
	reg := scribe.NewProviderRegistry()
	registerProviders(reg)

	_, err := reg.BuildSTTFactory("deepgram", sttConfig("deepgram", map[string]any{"model": "nova-2"}))
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api_key error, got %v", err)
	}
	_, err = reg.BuildSTTFactory("deepgram", sttConfig("deepgram", map[string]any{
		"api_key": "k", "model": "nova-2", "encoding": "opus",
	}))
	if err == nil || !strings.Contains(err.Error(), "encoding") {
		t.Fatalf("expected encoding error, got %v", err)
	}
	_, err = reg.BuildSTTFactory("deepgram", sttConfig("deepgram", map[string]any{
		"api_key": "k", "model": "nova-2", "utterance_end_ms": 200,
	}))
	if err == nil || !strings.Contains(err.Error(), "utterance_end_ms") {
		t.Fatalf("expected utterance_end_ms error, got %v", err)
	}

	factory, err := reg.BuildSTTFactory("deepgram", sttConfig("deepgram", map[string]any{
		"api_key": "k", "model": "nova-2", "utterance_end_ms": "1500",
	}))
	if err != nil {
		t.Fatalf("expected factory, got %v", err)
	}
	if got := factory("CA1", "MZ1", "trace").Name(); got != "deepgram_streaming" {
		t.Fatalf("expected deepgram adapter, got %s", got)
	}
}

func TestMockProviderRejectsUnknownSettings(t *testing.T) {
	reg := scribe.NewProviderRegistry()
	registerProviders(reg)
	_, err := reg.BuildSTTFactory("mock", sttConfig("mock", map[string]any{"voice": "x"}))
	if err == nil || !strings.Contains(err.Error(), "unknown: voice") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	factory, err := reg.BuildSTTFactory("mock", sttConfig("mock", map[string]any{"transcript": "hi"}))
	if err != nil {
		t.Fatalf("expected factory, got %v", err)
	}
	if got := factory("CA1", "MZ1", "trace").Name(); got != "mock_stt" {
		t.Fatalf("expected mock adapter, got %s", got)
	}
}

func TestBuildTransport(t *testing.T) {
	tr, err := buildTransport(scribe.Config{Transports: scribe.TransportsConfig{
		Provider: "Twilio",
		Settings: map[string]any{"server_addr": ":0", "ws_path": "/media"},
	}})
	if err != nil {
		t.Fatalf("expected twilio transport, got %v", err)
	}
	if _, ok := tr.(*twiliotransport.Transport); !ok {
		t.Fatalf("expected *twilio.Transport, got %T", tr)
	}

	if _, err := buildTransport(scribe.Config{Transports: scribe.TransportsConfig{
		Provider: "twilio",
		Settings: map[string]any{"hangup_rejected": true},
	}}); err == nil || !strings.Contains(err.Error(), "account_sid") {
		t.Fatalf("expected credentials error, got %v", err)
	}

	tr, err = buildTransport(scribe.Config{Transports: scribe.TransportsConfig{Provider: "mock"}})
	if err != nil {
		t.Fatalf("expected mock transport, got %v", err)
	}
	if _, ok := tr.(*mocktransport.Transport); !ok {
		t.Fatalf("expected mock transport, got %T", tr)
	}

	if _, err := buildTransport(scribe.Config{Transports: scribe.TransportsConfig{Provider: "sip"}}); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}
