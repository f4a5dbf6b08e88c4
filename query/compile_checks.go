package query

import (
	"github.com/goliatone/go-channels/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetChannelMessage, core.Channel]              = (*GetChannelQuery)(nil)
	_ gocmd.Querier[GetChannelByPhoneNumberMessage, core.Channel] = (*GetChannelByPhoneNumberQuery)(nil)
	_ gocmd.Querier[TemplateSyncDueMessage, []core.Channel]       = (*TemplateSyncDueQuery)(nil)
	_ gocmd.Querier[ValidateChannelConfigMessage, bool]           = (*ValidateChannelConfigQuery)(nil)
	_ gocmd.Querier[TokenStatusMessage, core.TokenStatus]         = (*TokenStatusQuery)(nil)
	_ gocmd.Querier[MediaURLMessage, string]                      = (*MediaURLQuery)(nil)
	_ gocmd.Querier[ReauthorizationRequiredMessage, bool]         = (*ReauthorizationRequiredQuery)(nil)

	_ ChannelReader        = (*core.Service)(nil)
	_ ProviderStatusReader = (*core.Service)(nil)
)
