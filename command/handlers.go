package command

import (
	"context"

	"github.com/goliatone/go-channels/core"
	gocmd "github.com/goliatone/go-command"
)

type ChannelLifecycleService interface {
	CreateChannel(ctx context.Context, req core.CreateChannelRequest) (core.Channel, error)
	UpdateChannel(ctx context.Context, req core.UpdateChannelRequest) (core.Channel, error)
	DestroyChannel(ctx context.Context, channelID string) error
}

type MessagingService interface {
	SendMessage(ctx context.Context, req core.SendMessageRequest) (core.SendResult, error)
	SendMessages(ctx context.Context, reqs []core.SendMessageRequest) ([]core.SendResult, error)
	SendTemplate(ctx context.Context, req core.SendTemplateRequest) (core.SendResult, error)
}

type MaintenanceService interface {
	SyncTemplates(ctx context.Context, channelID string) (core.TemplateSyncResult, error)
	RenewToken(ctx context.Context, channelID string, force bool) (core.TokenRenewalResult, error)
	AuthorizationError(ctx context.Context, channelID string) (core.ReauthorizationState, error)
	Reauthorized(ctx context.Context, channelID string) error
}

// MutatingService is everything the command handlers delegate to.
type MutatingService interface {
	ChannelLifecycleService
	MessagingService
	MaintenanceService
}

type CreateChannelCommand struct {
	service ChannelLifecycleService
}

func NewCreateChannelCommand(service ChannelLifecycleService) *CreateChannelCommand {
	return &CreateChannelCommand{service: service}
}

func (c *CreateChannelCommand) Execute(ctx context.Context, msg CreateChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: channel service is required")
	}
	out, err := c.service.CreateChannel(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateChannelCommand struct {
	service ChannelLifecycleService
}

func NewUpdateChannelCommand(service ChannelLifecycleService) *UpdateChannelCommand {
	return &UpdateChannelCommand{service: service}
}

func (c *UpdateChannelCommand) Execute(ctx context.Context, msg UpdateChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: channel service is required")
	}
	out, err := c.service.UpdateChannel(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DestroyChannelCommand struct {
	service ChannelLifecycleService
}

func NewDestroyChannelCommand(service ChannelLifecycleService) *DestroyChannelCommand {
	return &DestroyChannelCommand{service: service}
}

func (c *DestroyChannelCommand) Execute(ctx context.Context, msg DestroyChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: channel service is required")
	}
	return c.service.DestroyChannel(ctx, msg.ChannelID)
}

type SendMessageCommand struct {
	service MessagingService
}

func NewSendMessageCommand(service MessagingService) *SendMessageCommand {
	return &SendMessageCommand{service: service}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: messaging service is required")
	}
	out, err := c.service.SendMessage(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendMessagesCommand struct {
	service MessagingService
}

func NewSendMessagesCommand(service MessagingService) *SendMessagesCommand {
	return &SendMessagesCommand{service: service}
}

func (c *SendMessagesCommand) Execute(ctx context.Context, msg SendMessagesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: messaging service is required")
	}
	out, err := c.service.SendMessages(ctx, msg.Requests)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendTemplateCommand struct {
	service MessagingService
}

func NewSendTemplateCommand(service MessagingService) *SendTemplateCommand {
	return &SendTemplateCommand{service: service}
}

func (c *SendTemplateCommand) Execute(ctx context.Context, msg SendTemplateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: messaging service is required")
	}
	out, err := c.service.SendTemplate(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SyncTemplatesCommand struct {
	service MaintenanceService
}

func NewSyncTemplatesCommand(service MaintenanceService) *SyncTemplatesCommand {
	return &SyncTemplatesCommand{service: service}
}

func (c *SyncTemplatesCommand) Execute(ctx context.Context, msg SyncTemplatesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: template sync service is required")
	}
	out, err := c.service.SyncTemplates(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RenewTokenCommand struct {
	service MaintenanceService
}

func NewRenewTokenCommand(service MaintenanceService) *RenewTokenCommand {
	return &RenewTokenCommand{service: service}
}

func (c *RenewTokenCommand) Execute(ctx context.Context, msg RenewTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	out, err := c.service.RenewToken(ctx, msg.ChannelID, msg.Force)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AuthorizationErrorCommand struct {
	service MaintenanceService
}

func NewAuthorizationErrorCommand(service MaintenanceService) *AuthorizationErrorCommand {
	return &AuthorizationErrorCommand{service: service}
}

func (c *AuthorizationErrorCommand) Execute(ctx context.Context, msg AuthorizationErrorMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reauthorization service is required")
	}
	out, err := c.service.AuthorizationError(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReauthorizedCommand struct {
	service MaintenanceService
}

func NewReauthorizedCommand(service MaintenanceService) *ReauthorizedCommand {
	return &ReauthorizedCommand{service: service}
}

func (c *ReauthorizedCommand) Execute(ctx context.Context, msg ReauthorizedMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reauthorization service is required")
	}
	return c.service.Reauthorized(ctx, msg.ChannelID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
