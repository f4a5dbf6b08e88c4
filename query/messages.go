package query

import "strings"

const (
	TypeGetChannel              = "channels.query.channel.get"
	TypeGetChannelByPhoneNumber = "channels.query.channel.by_phone_number"
	TypeValidateChannelConfig   = "channels.query.channel.validate_config"
	TypeTokenStatus             = "channels.query.token.status"
	TypeMediaURL                = "channels.query.media.url"
	TypeReauthorizationRequired = "channels.query.reauthorization.required"
	TypeTemplateSyncDue         = "channels.query.templates.sync_due"
)

type GetChannelMessage struct {
	ChannelID string
}

func (GetChannelMessage) Type() string { return TypeGetChannel }

func (m GetChannelMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type GetChannelByPhoneNumberMessage struct {
	PhoneNumber string
}

func (GetChannelByPhoneNumberMessage) Type() string { return TypeGetChannelByPhoneNumber }

func (m GetChannelByPhoneNumberMessage) Validate() error {
	if strings.TrimSpace(m.PhoneNumber) == "" {
		return queryValidationError("phone_number", "phone number is required")
	}
	return nil
}

// ValidateChannelConfigMessage asks the provider whether the stored
// credentials still work. It may call out to the provider.
type ValidateChannelConfigMessage struct {
	ChannelID string
}

func (ValidateChannelConfigMessage) Type() string { return TypeValidateChannelConfig }

func (m ValidateChannelConfigMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type TokenStatusMessage struct {
	ChannelID string
}

func (TokenStatusMessage) Type() string { return TypeTokenStatus }

func (m TokenStatusMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type MediaURLMessage struct {
	ChannelID string
	MediaID   string
}

func (MediaURLMessage) Type() string { return TypeMediaURL }

func (m MediaURLMessage) Validate() error {
	if err := requireChannelID(m.ChannelID); err != nil {
		return err
	}
	if strings.TrimSpace(m.MediaID) == "" {
		return queryValidationError("media_id", "media id is required")
	}
	return nil
}

type ReauthorizationRequiredMessage struct {
	ChannelID string
}

func (ReauthorizationRequiredMessage) Type() string { return TypeReauthorizationRequired }

func (m ReauthorizationRequiredMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type TemplateSyncDueMessage struct {
	Limit int
}

func (TemplateSyncDueMessage) Type() string { return TypeTemplateSyncDue }

func (m TemplateSyncDueMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

func requireChannelID(channelID string) error {
	if strings.TrimSpace(channelID) == "" {
		return queryValidationError("channel_id", "channel id is required")
	}
	return nil
}
