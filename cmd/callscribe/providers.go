package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/callscribe/pkg/adapters/stt"
	"github.com/harunnryd/callscribe/pkg/configutil"
	"github.com/harunnryd/callscribe/pkg/providers/deepgram"
	"github.com/harunnryd/callscribe/pkg/providers/mock"
	"github.com/harunnryd/callscribe/pkg/scribe"
	"github.com/harunnryd/callscribe/pkg/transports"
	mocktransport "github.com/harunnryd/callscribe/pkg/transports/mock"
	twiliotransport "github.com/harunnryd/callscribe/pkg/transports/twilio"
)

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Encoding       string `mapstructure:"encoding"`
	Interim        *bool  `mapstructure:"interim"`
	VADEvents      *bool  `mapstructure:"vad_events"`
	SmartFormat    *bool  `mapstructure:"smart_format"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
}

type mockSTTSettings struct {
	Transcript  string `mapstructure:"transcript"`
	EmitInterim *bool  `mapstructure:"emit_interim"`
}

type twilioSettings struct {
	AccountSID         string   `mapstructure:"account_sid"`
	AuthToken          string   `mapstructure:"auth_token"`
	PublicURL          string   `mapstructure:"public_url"`
	ServerAddr         string   `mapstructure:"server_addr"`
	VoicePath          string   `mapstructure:"voice_path"`
	WebsocketPath      string   `mapstructure:"ws_path"`
	StatusCallbackPath string   `mapstructure:"status_callback_path"`
	VoiceGreeting      string   `mapstructure:"voice_greeting"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	HangupRejected     bool     `mapstructure:"hangup_rejected"`
}

func validDeepgramEncoding(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "linear16", "mulaw":
		return true
	default:
		return false
	}
}

func registerProviders(reg *scribe.ProviderRegistry) {
	reg.RegisterSTT("deepgram", func(cfg scribe.Config) (stt.Factory, error) {
		if err := validateSettings("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"language", "sample_rate", "encoding", "interim", "vad_events", "smart_format", "utterance_end_ms"},
		}); err != nil {
			return nil, err
		}
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.Model, "vendors.stt.settings.model"); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = 8000
		}
		if settings.Language == "" {
			settings.Language = "en-US"
		}
		if settings.Encoding == "" {
			settings.Encoding = "mulaw"
		}
		if !validDeepgramEncoding(settings.Encoding) {
			return nil, fmt.Errorf("vendors.stt.settings.encoding must be one of [linear16, mulaw], got %s", settings.Encoding)
		}
		utteranceEnd := configutil.IntValue(settings.UtteranceEndMS, 1000)
		if utteranceEnd < 1000 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("vendors.stt.settings.utterance_end_ms must be between 1000 and 5000, got %d", utteranceEnd)
		}
		interim := configutil.BoolValue(settings.Interim, true)
		vadEvents := configutil.BoolValue(settings.VADEvents, true)
		smartFormat := configutil.BoolValue(settings.SmartFormat, true)

		return func(callSID, streamID, traceID string) stt.StreamingSTT {
			return deepgram.New(deepgram.Config{
				APIKey:         settings.APIKey,
				Model:          settings.Model,
				Language:       settings.Language,
				SampleRate:     settings.SampleRate,
				Encoding:       settings.Encoding,
				Interim:        interim,
				VADEvents:      vadEvents,
				SmartFormat:    smartFormat,
				UtteranceEndMS: utteranceEnd,
				StreamID:       streamID,
				CallSID:        callSID,
				TraceID:        traceID,
			})
		}, nil
	})

	reg.RegisterSTT("mock", func(cfg scribe.Config) (stt.Factory, error) {
		if err := validateSettings("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcript", "emit_interim"},
		}); err != nil {
			return nil, err
		}
		var settings mockSTTSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		emitInterim := configutil.BoolValue(settings.EmitInterim, false)
		return func(callSID, streamID, traceID string) stt.StreamingSTT {
			return mock.NewSTT(mock.STTConfig{
				StreamID:    streamID,
				CallSID:     callSID,
				TraceID:     traceID,
				Transcript:  settings.Transcript,
				EmitInterim: emitInterim,
			})
		}, nil
	})
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	return configutil.ValidateSection(path, input, schema)
}

func twilioConfigFromSettings(settings map[string]any) (twiliotransport.Config, error) {
	if err := validateSettings("transports.settings", settings, configutil.Schema{
		Optional: []string{"account_sid", "auth_token", "public_url", "server_addr", "voice_path", "ws_path", "status_callback_path", "voice_greeting", "allow_any_origin", "allowed_origins", "hangup_rejected"},
	}); err != nil {
		return twiliotransport.Config{}, err
	}
	var s twilioSettings
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return twiliotransport.Config{}, err
	}
	if s.HangupRejected {
		if err := configutil.RequireString(s.AccountSID, "transports.settings.account_sid"); err != nil {
			return twiliotransport.Config{}, err
		}
		if err := configutil.RequireString(s.AuthToken, "transports.settings.auth_token"); err != nil {
			return twiliotransport.Config{}, err
		}
	}
	return twiliotransport.Config{
		AccountSID:         s.AccountSID,
		AuthToken:          s.AuthToken,
		PublicURL:          s.PublicURL,
		ServerAddr:         s.ServerAddr,
		VoicePath:          s.VoicePath,
		WebsocketPath:      s.WebsocketPath,
		StatusCallbackPath: s.StatusCallbackPath,
		VoiceGreeting:      s.VoiceGreeting,
		AllowAnyOrigin:     s.AllowAnyOrigin,
		AllowedOrigins:     s.AllowedOrigins,
		HangupRejected:     s.HangupRejected,
	}, nil
}

func buildTransport(cfg scribe.Config) (transports.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transports.Provider)) {
	case "twilio":
		tc, err := twilioConfigFromSettings(cfg.Transports.Settings)
		if err != nil {
			return nil, err
		}
		return twiliotransport.New(tc), nil
	case "mock":
		return mocktransport.New(), nil
	default:
		return nil, fmt.Errorf("unsupported transport provider: %s", cfg.Transports.Provider)
	}
}
