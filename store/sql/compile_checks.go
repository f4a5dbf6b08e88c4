package sqlstore

import "github.com/goliatone/go-channels/core"

var (
	_ core.ChannelStore           = (*ChannelStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
