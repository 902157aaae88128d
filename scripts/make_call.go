// make_call places an outbound call whose audio is streamed back to a
// running bridge. Usage:
//
//	go run scripts/make_call.go -from=+15550001 -to=+15550002 [-config=configs/callscribe.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/callscribe/pkg/configutil"
	twiliotransport "github.com/harunnryd/callscribe/pkg/transports/twilio"
)

type fileConfig struct {
	Transports struct {
		Provider string         `mapstructure:"provider"`
		Settings map[string]any `mapstructure:"settings"`
	} `mapstructure:"transports"`
}

type twilioSettings struct {
	AccountSID         string `mapstructure:"account_sid"`
	AuthToken          string `mapstructure:"auth_token"`
	PublicURL          string `mapstructure:"public_url"`
	VoicePath          string `mapstructure:"voice_path"`
	StatusCallbackPath string `mapstructure:"status_callback_path"`
}

func main() {
	configPath := flag.String("config", "configs/callscribe.yaml", "")
	from := flag.String("from", "", "caller ID")
	to := flag.String("to", "", "destination number")
	voiceURL := flag.String("voice_url", "", "override the bridge voice webhook")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-config=...]")
		os.Exit(1)
	}

	v := viper.New()
	v.SetConfigFile(*configPath)
	if err := v.ReadInConfig(); err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if p := strings.ToLower(cfg.Transports.Provider); p != "" && p != "twilio" {
		fmt.Println("transports.provider is not twilio:", cfg.Transports.Provider)
		os.Exit(1)
	}
	configutil.ExpandEnv(&cfg)

	var settings twilioSettings
	if err := configutil.DecodeSettings(cfg.Transports.Settings, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}
	if *voiceURL == "" && settings.PublicURL == "" {
		fmt.Println("public_url is empty; pass -voice_url")
		os.Exit(1)
	}

	dialer := twiliotransport.NewDialer(twiliotransport.Config{
		AccountSID:         settings.AccountSID,
		AuthToken:          settings.AuthToken,
		PublicURL:          settings.PublicURL,
		VoicePath:          settings.VoicePath,
		StatusCallbackPath: settings.StatusCallbackPath,
	})
	callSID, err := dialer.Dial(context.Background(), *to, *from, *voiceURL)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}
