package command

import (
	"strings"

	"github.com/goliatone/go-channels/core"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	TypeCreateChannel      = "channels.command.channel.create"
	TypeUpdateChannel      = "channels.command.channel.update"
	TypeDestroyChannel     = "channels.command.channel.destroy"
	TypeSendMessage        = "channels.command.message.send"
	TypeSendMessages       = "channels.command.message.send_batch"
	TypeSendTemplate       = "channels.command.template.send"
	TypeSyncTemplates      = "channels.command.templates.sync"
	TypeRenewToken         = "channels.command.token.renew"
	TypeAuthorizationError = "channels.command.reauthorization.error"
	TypeReauthorized       = "channels.command.reauthorization.reset"
)

type CreateChannelMessage struct {
	Request core.CreateChannelRequest
}

func (CreateChannelMessage) Type() string { return TypeCreateChannel }

func (m CreateChannelMessage) Validate() error {
	req := m.Request
	return commandOzzoValidation(validation.ValidateStruct(&req,
		validation.Field(&req.AccountID, validation.Required),
		validation.Field(&req.PhoneNumber, validation.Required),
	))
}

type UpdateChannelMessage struct {
	Request core.UpdateChannelRequest
}

func (UpdateChannelMessage) Type() string { return TypeUpdateChannel }

func (m UpdateChannelMessage) Validate() error {
	if strings.TrimSpace(m.Request.ChannelID) == "" {
		return commandValidationError("channel_id", "channel id is required")
	}
	if strings.TrimSpace(m.Request.PhoneNumber) == "" && m.Request.Config == nil {
		return commandValidationError("request", "phone number or config is required")
	}
	return nil
}

type DestroyChannelMessage struct {
	ChannelID string
}

func (DestroyChannelMessage) Type() string { return TypeDestroyChannel }

func (m DestroyChannelMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type SendMessageMessage struct {
	Request core.SendMessageRequest
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	return validateSendRequest(m.Request)
}

type SendMessagesMessage struct {
	Requests []core.SendMessageRequest
}

func (SendMessagesMessage) Type() string { return TypeSendMessages }

func (m SendMessagesMessage) Validate() error {
	if len(m.Requests) == 0 {
		return commandValidationError("requests", "at least one message is required")
	}
	for _, req := range m.Requests {
		if err := validateSendRequest(req); err != nil {
			return err
		}
	}
	return nil
}

type SendTemplateMessage struct {
	Request core.SendTemplateRequest
}

func (SendTemplateMessage) Type() string { return TypeSendTemplate }

func (m SendTemplateMessage) Validate() error {
	req := m.Request
	return commandOzzoValidation(validation.ValidateStruct(&req,
		validation.Field(&req.ChannelID, validation.Required),
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Template, validation.By(func(any) error {
			if strings.TrimSpace(req.Template.Name) == "" {
				return validation.NewError("validation_template_name", "template name is required")
			}
			return nil
		})),
	))
}

type SyncTemplatesMessage struct {
	ChannelID string
}

func (SyncTemplatesMessage) Type() string { return TypeSyncTemplates }

func (m SyncTemplatesMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type RenewTokenMessage struct {
	ChannelID string
	Force     bool
}

func (RenewTokenMessage) Type() string { return TypeRenewToken }

func (m RenewTokenMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type AuthorizationErrorMessage struct {
	ChannelID string
}

func (AuthorizationErrorMessage) Type() string { return TypeAuthorizationError }

func (m AuthorizationErrorMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

type ReauthorizedMessage struct {
	ChannelID string
}

func (ReauthorizedMessage) Type() string { return TypeReauthorized }

func (m ReauthorizedMessage) Validate() error {
	return requireChannelID(m.ChannelID)
}

func requireChannelID(channelID string) error {
	if strings.TrimSpace(channelID) == "" {
		return commandValidationError("channel_id", "channel id is required")
	}
	return nil
}

func validateSendRequest(req core.SendMessageRequest) error {
	if err := requireChannelID(req.ChannelID); err != nil {
		return err
	}
	if strings.TrimSpace(req.To) == "" {
		return commandValidationError("to", "recipient is required")
	}
	return nil
}
