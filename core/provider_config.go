package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

const tokenExpiryNever = "never"

// TokenExpiry is the stored expiry of the channel access token. It encodes as
// an RFC3339 timestamp, or the literal "never" for non-expiring tokens.
type TokenExpiry struct {
	At    time.Time
	Never bool
}

func NeverExpires() TokenExpiry {
	return TokenExpiry{Never: true}
}

func ExpiresAt(at time.Time) TokenExpiry {
	return TokenExpiry{At: at.UTC()}
}

func (e TokenExpiry) IsZero() bool {
	return !e.Never && e.At.IsZero()
}

func (e TokenExpiry) String() string {
	switch {
	case e.Never:
		return tokenExpiryNever
	case e.At.IsZero():
		return ""
	default:
		return e.At.UTC().Format(time.RFC3339)
	}
}

func (e TokenExpiry) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(e.String())
}

func (e *TokenExpiry) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseTokenExpiry(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

func parseTokenExpiry(raw any) (TokenExpiry, error) {
	switch typed := raw.(type) {
	case nil:
		return TokenExpiry{}, nil
	case string:
		value := strings.TrimSpace(typed)
		if value == "" {
			return TokenExpiry{}, nil
		}
		if strings.EqualFold(value, tokenExpiryNever) {
			return NeverExpires(), nil
		}
		at, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return TokenExpiry{}, fmt.Errorf("core: invalid token_expiry_date %q: %w", value, err)
		}
		return ExpiresAt(at), nil
	case float64:
		if typed <= 0 {
			return TokenExpiry{}, nil
		}
		return ExpiresAt(time.Unix(int64(typed), 0)), nil
	default:
		return TokenExpiry{}, fmt.Errorf("core: unsupported token_expiry_date type %T", raw)
	}
}

// ProviderConfig is the provider specific configuration owned by a channel.
// Known keys map to typed fields; anything else is kept in Extra and written
// back untouched.
type ProviderConfig struct {
	APIKey             string         `json:"api_key"`
	BusinessAccountID  string         `json:"business_account_id"`
	PhoneNumberID      string         `json:"phone_number_id"`
	AppID              string         `json:"app_id"`
	Pin                string         `json:"pin"`
	WebhookVerifyToken string         `json:"webhook_verify_token"`
	Namespace          string         `json:"namespace"`
	TokenExpiry        TokenExpiry    `json:"token_expiry_date"`
	Registered         *bool          `json:"registered"`
	WebhookVerified    *bool          `json:"webhook_verified"`
	Extra              map[string]any `json:"-"`
}

var providerConfigKeys = map[string]struct{}{
	"api_key":              {},
	"business_account_id":  {},
	"phone_number_id":      {},
	"app_id":               {},
	"pin":                  {},
	"webhook_verify_token": {},
	"namespace":            {},
	"token_expiry_date":    {},
	"registered":           {},
	"webhook_verified":     {},
	"webhook_verfied":      {},
}

func (c ProviderConfig) Clone() ProviderConfig {
	out := c
	out.Registered = cloneBool(c.Registered)
	out.WebhookVerified = cloneBool(c.WebhookVerified)
	out.Extra = cloneAnyMap(c.Extra)
	return out
}

// ToMap renders the configuration as the open document persisted on the channel.
func (c ProviderConfig) ToMap() map[string]any {
	out := cloneAnyMap(c.Extra)
	setString := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}
	setString("api_key", c.APIKey)
	setString("business_account_id", c.BusinessAccountID)
	setString("phone_number_id", c.PhoneNumberID)
	setString("app_id", c.AppID)
	setString("pin", c.Pin)
	setString("webhook_verify_token", c.WebhookVerifyToken)
	setString("namespace", c.Namespace)
	if !c.TokenExpiry.IsZero() {
		out["token_expiry_date"] = c.TokenExpiry.String()
	}
	if c.Registered != nil {
		out["registered"] = *c.Registered
	}
	if c.WebhookVerified != nil {
		out["webhook_verified"] = *c.WebhookVerified
	}
	return out
}

// ProviderConfigFromMap parses an open configuration document.
func ProviderConfigFromMap(raw map[string]any) (ProviderConfig, error) {
	cfg := ProviderConfig{Extra: map[string]any{}}
	for key, value := range raw {
		if _, known := providerConfigKeys[key]; !known {
			cfg.Extra[key] = value
		}
	}
	cfg.APIKey = stringValue(raw["api_key"])
	cfg.BusinessAccountID = stringValue(raw["business_account_id"])
	cfg.PhoneNumberID = stringValue(raw["phone_number_id"])
	cfg.AppID = stringValue(raw["app_id"])
	cfg.Pin = stringValue(raw["pin"])
	cfg.WebhookVerifyToken = stringValue(raw["webhook_verify_token"])
	cfg.Namespace = stringValue(raw["namespace"])
	expiry, err := parseTokenExpiry(raw["token_expiry_date"])
	if err != nil {
		return ProviderConfig{}, err
	}
	cfg.TokenExpiry = expiry
	cfg.Registered = boolValue(raw["registered"])
	cfg.WebhookVerified = boolValue(raw["webhook_verified"])
	if cfg.WebhookVerified == nil {
		cfg.WebhookVerified = boolValue(raw["webhook_verfied"])
	}
	return cfg, nil
}

func (c ProviderConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

func (c *ProviderConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ProviderConfigFromMap(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Validate checks the fields each provider needs before any remote call.
func (c ProviderConfig) Validate(kind ProviderKind) error {
	rules := []*validation.FieldRules{
		validation.Field(&c.APIKey, validation.Required),
	}
	if kind.TokenBearing() {
		rules = append(rules,
			validation.Field(&c.BusinessAccountID, validation.Required),
			validation.Field(&c.PhoneNumberID, validation.Required),
			validation.Field(&c.Pin, validation.Length(6, 6)),
		)
	}
	if err := validation.ValidateStruct(&c, rules...); err != nil {
		return ensureChannelErrorEnvelope(
			goerrors.FromOzzoValidation(err, "core: provider config is invalid").
				WithTextCode(ChannelErrorConfigInvalid),
		)
	}
	return nil
}

// APIKeyChanged reports whether a configuration update rotated the credential.
func APIKeyChanged(before, after ProviderConfig) bool {
	return strings.TrimSpace(before.APIKey) != strings.TrimSpace(after.APIKey)
}

// ConfigChanged reports whether two configurations would persist differently.
func ConfigChanged(before, after ProviderConfig) bool {
	left, err := json.Marshal(before.ToMap())
	if err != nil {
		return true
	}
	right, err := json.Marshal(after.ToMap())
	if err != nil {
		return true
	}
	return string(left) != string(right)
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", typed))
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func boolValue(value any) *bool {
	switch typed := value.(type) {
	case bool:
		return &typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true":
			v := true
			return &v
		case "false":
			v := false
			return &v
		}
	}
	return nil
}

func cloneBool(in *bool) *bool {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func cloneAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func boolPtr(value bool) *bool {
	return &value
}
