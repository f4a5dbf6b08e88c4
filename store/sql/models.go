package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	"github.com/uptrace/bun"
)

type channelRecord struct {
	bun.BaseModel `bun:"table:channel_whatsapp,alias:cw"`

	ID                          string          `bun:"id,pk"`
	AccountID                   string          `bun:"account_id,notnull"`
	PhoneNumber                 string          `bun:"phone_number,notnull"`
	Provider                    string          `bun:"provider,notnull"`
	ProviderConfig              map[string]any  `bun:"provider_config,type:jsonb,notnull"`
	MessageTemplates            []core.Template `bun:"message_templates,type:jsonb,notnull"`
	MessageTemplatesLastUpdated *time.Time      `bun:"message_templates_last_updated,nullzero"`
	CreatedAt                   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                   time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newChannelRecord(channel core.Channel, now time.Time) *channelRecord {
	record := fromDomainChannel(channel)
	record.CreatedAt = now
	record.UpdatedAt = now
	return record
}

func fromDomainChannel(channel core.Channel) *channelRecord {
	templates := channel.MessageTemplates
	if templates == nil {
		templates = []core.Template{}
	}
	provider := channel.Provider
	if !provider.Recognized() {
		provider = core.ParseProviderKind(string(provider))
	}
	return &channelRecord{
		ID:                          strings.TrimSpace(channel.ID),
		AccountID:                   strings.TrimSpace(channel.AccountID),
		PhoneNumber:                 strings.TrimSpace(channel.PhoneNumber),
		Provider:                    string(provider),
		ProviderConfig:              channel.Config.ToMap(),
		MessageTemplates:            templates,
		MessageTemplatesLastUpdated: utcPointer(channel.MessageTemplatesLastUpdated),
		CreatedAt:                   channel.CreatedAt.UTC(),
		UpdatedAt:                   channel.UpdatedAt.UTC(),
	}
}

func (r *channelRecord) toDomain() (core.Channel, error) {
	if r == nil {
		return core.Channel{}, nil
	}
	config, err := core.ProviderConfigFromMap(r.ProviderConfig)
	if err != nil {
		return core.Channel{}, err
	}
	channel := core.Channel{
		ID:                          r.ID,
		AccountID:                   r.AccountID,
		PhoneNumber:                 r.PhoneNumber,
		Provider:                    core.ParseProviderKind(r.Provider),
		Config:                      config,
		MessageTemplates:            r.MessageTemplates,
		MessageTemplatesLastUpdated: utcPointer(r.MessageTemplatesLastUpdated),
		CreatedAt:                   r.CreatedAt.UTC(),
		UpdatedAt:                   r.UpdatedAt.UTC(),
	}
	return channel.Clone(), nil
}

func utcPointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}
