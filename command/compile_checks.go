package command

import (
	"github.com/goliatone/go-channels/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[CreateChannelMessage]      = (*CreateChannelCommand)(nil)
	_ gocmd.Commander[UpdateChannelMessage]      = (*UpdateChannelCommand)(nil)
	_ gocmd.Commander[DestroyChannelMessage]     = (*DestroyChannelCommand)(nil)
	_ gocmd.Commander[SendMessageMessage]        = (*SendMessageCommand)(nil)
	_ gocmd.Commander[SendMessagesMessage]       = (*SendMessagesCommand)(nil)
	_ gocmd.Commander[SendTemplateMessage]       = (*SendTemplateCommand)(nil)
	_ gocmd.Commander[SyncTemplatesMessage]      = (*SyncTemplatesCommand)(nil)
	_ gocmd.Commander[RenewTokenMessage]         = (*RenewTokenCommand)(nil)
	_ gocmd.Commander[AuthorizationErrorMessage] = (*AuthorizationErrorCommand)(nil)
	_ gocmd.Commander[ReauthorizedMessage]       = (*ReauthorizedCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
