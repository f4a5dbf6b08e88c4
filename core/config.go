package core

import (
	"fmt"
	"strings"
	"time"
)

type GraphConfig struct {
	BaseURL           string `koanf:"base_url" mapstructure:"base_url"`
	PhoneVersion      string `koanf:"phone_version" mapstructure:"phone_version"`
	BusinessVersion   string `koanf:"business_version" mapstructure:"business_version"`
	OAuthVersion      string `koanf:"oauth_version" mapstructure:"oauth_version"`
	DeregisterVersion string `koanf:"deregister_version" mapstructure:"deregister_version"`
	WebhookVersion    string `koanf:"webhook_version" mapstructure:"webhook_version"`
}

type DialogConfig struct {
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
}

type AppConfig struct {
	ID          string `koanf:"id" mapstructure:"id"`
	Secret      string `koanf:"secret" mapstructure:"secret"`
	AccessToken string `koanf:"access_token" mapstructure:"access_token"`
}

type TokenConfig struct {
	RenewalHorizon time.Duration `koanf:"renewal_horizon" mapstructure:"renewal_horizon"`
}

type TemplateConfig struct {
	MaxPages   int           `koanf:"max_pages" mapstructure:"max_pages"`
	StaleAfter time.Duration `koanf:"stale_after" mapstructure:"stale_after"`
}

type RegistrationConfig struct {
	MaxDuplicateDeletes int  `koanf:"max_duplicate_deletes" mapstructure:"max_duplicate_deletes"`
	EmbeddedSetWebhook  bool `koanf:"embedded_set_webhook" mapstructure:"embedded_set_webhook"`
}

type ReauthorizationConfig struct {
	Threshold int `koanf:"threshold" mapstructure:"threshold"`
}

type Config struct {
	ServiceName     string                `koanf:"service_name" mapstructure:"service_name"`
	FrontendURL     string                `koanf:"frontend_url" mapstructure:"frontend_url"`
	RequestTimeout  time.Duration         `koanf:"request_timeout" mapstructure:"request_timeout"`
	Graph           GraphConfig           `koanf:"graph" mapstructure:"graph"`
	Dialog          DialogConfig          `koanf:"dialog" mapstructure:"dialog"`
	App             AppConfig             `koanf:"app" mapstructure:"app"`
	Token           TokenConfig           `koanf:"token" mapstructure:"token"`
	Templates       TemplateConfig        `koanf:"templates" mapstructure:"templates"`
	Registration    RegistrationConfig    `koanf:"registration" mapstructure:"registration"`
	Reauthorization ReauthorizationConfig `koanf:"reauthorization" mapstructure:"reauthorization"`
}

const (
	DefaultGraphBaseURL    = "https://graph.facebook.com"
	DefaultDialogBaseURL   = "https://waba.360dialog.io/v1"
	DefaultRenewalHorizon  = 7 * 24 * time.Hour
	DefaultTemplateMaxPage = 50
)

func DefaultConfig() Config {
	return Config{
		ServiceName:    "channels",
		RequestTimeout: 30 * time.Second,
		Graph: GraphConfig{
			BaseURL:           DefaultGraphBaseURL,
			PhoneVersion:      "v13.0",
			BusinessVersion:   "v14.0",
			OAuthVersion:      "v16.0",
			DeregisterVersion: "v18.0",
			WebhookVersion:    "v18.0",
		},
		Dialog: DialogConfig{BaseURL: DefaultDialogBaseURL},
		Token:  TokenConfig{RenewalHorizon: DefaultRenewalHorizon},
		Templates: TemplateConfig{
			MaxPages:   DefaultTemplateMaxPage,
			StaleAfter: 3 * time.Hour,
		},
		Registration:    RegistrationConfig{MaxDuplicateDeletes: 10},
		Reauthorization: ReauthorizationConfig{Threshold: 2},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Graph.BaseURL) == "" {
		return fmt.Errorf("core: graph.base_url is required")
	}
	if strings.TrimSpace(c.Dialog.BaseURL) == "" {
		return fmt.Errorf("core: dialog.base_url is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	if c.Token.RenewalHorizon <= 0 {
		return fmt.Errorf("core: token.renewal_horizon must be positive")
	}
	if c.Templates.MaxPages <= 0 {
		return fmt.Errorf("core: templates.max_pages must be positive")
	}
	if c.Registration.MaxDuplicateDeletes <= 0 {
		return fmt.Errorf("core: registration.max_duplicate_deletes must be positive")
	}
	if c.Reauthorization.Threshold <= 0 {
		return fmt.Errorf("core: reauthorization.threshold must be positive")
	}
	return nil
}
