package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var channelMutableColumns = []string{
	"account_id",
	"phone_number",
	"provider",
	"provider_config",
	"message_templates",
	"message_templates_last_updated",
	"updated_at",
}

type ChannelStore struct {
	db   *bun.DB
	repo repository.Repository[*channelRecord]
	now  func() time.Time
}

func NewChannelStore(db *bun.DB) (*ChannelStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*channelRecord](db, channelHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid channel repository wiring: %w", err)
		}
	}
	return &ChannelStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *ChannelStore) Create(ctx context.Context, channel core.Channel) (core.Channel, error) {
	if s == nil || s.repo == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	if strings.TrimSpace(channel.AccountID) == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: account id is required")
	}
	if strings.TrimSpace(channel.PhoneNumber) == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: phone number is required")
	}
	if _, err := s.GetByPhoneNumber(ctx, channel.PhoneNumber); err == nil {
		return core.Channel{}, duplicatePhoneNumberError(channel.PhoneNumber)
	} else if !errors.Is(err, core.ErrChannelNotFound) {
		return core.Channel{}, err
	}

	record := newChannelRecord(channel, s.now().UTC())
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Channel{}, duplicatePhoneNumberError(channel.PhoneNumber)
		}
		return core.Channel{}, err
	}
	return created.toDomain()
}

func (s *ChannelStore) Get(ctx context.Context, id string) (core.Channel, error) {
	if s == nil || s.db == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: channel id is required")
	}
	record := &channelRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Channel{}, fmt.Errorf("sqlstore: channel %s: %w", trimmed, core.ErrChannelNotFound)
		}
		return core.Channel{}, err
	}
	return record.toDomain()
}

func (s *ChannelStore) GetByPhoneNumber(ctx context.Context, phoneNumber string) (core.Channel, error) {
	if s == nil || s.repo == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmed := strings.TrimSpace(phoneNumber)
	if trimmed == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: phone number is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("phone_number", "=", trimmed),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Channel{}, err
	}
	if len(records) == 0 {
		return core.Channel{}, fmt.Errorf("sqlstore: phone number %s: %w", trimmed, core.ErrChannelNotFound)
	}
	return records[0].toDomain()
}

// Update rewrites every mutable column. created_at is never touched.
func (s *ChannelStore) Update(ctx context.Context, channel core.Channel) (core.Channel, error) {
	if s == nil || s.db == nil {
		return core.Channel{}, fmt.Errorf("sqlstore: channel store is not configured")
	}
	record := fromDomainChannel(channel)
	if record.ID == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: channel id is required")
	}
	if record.PhoneNumber == "" {
		return core.Channel{}, fmt.Errorf("sqlstore: phone number is required")
	}
	record.UpdatedAt = s.now().UTC()

	result, err := s.db.NewUpdate().
		Model(record).
		Column(channelMutableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Channel{}, duplicatePhoneNumberError(record.PhoneNumber)
		}
		return core.Channel{}, err
	}
	if err := requireAffected(result, record.ID); err != nil {
		return core.Channel{}, err
	}
	return s.Get(ctx, record.ID)
}

func (s *ChannelStore) TouchTemplatesUpdated(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: channel id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*channelRecord)(nil)).
		Set("message_templates_last_updated = ?", at.UTC()).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, trimmed)
}

func (s *ChannelStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: channel store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: channel id is required")
	}
	result, err := s.db.NewDelete().
		Model((*channelRecord)(nil)).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, trimmed)
}

// ListTemplateSyncDue returns channels never synced or last synced before the
// cutoff, oldest id first.
func (s *ChannelStore) ListTemplateSyncDue(ctx context.Context, before time.Time, limit int) ([]core.Channel, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: channel store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := before.UTC()
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("?TableAlias.message_templates_last_updated IS NULL").
					WhereOr("?TableAlias.message_templates_last_updated < ?", cutoff)
			})
		}),
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.Channel, 0, len(records))
	for _, record := range records {
		channel, err := record.toDomain()
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode channel %s: %w", record.ID, err)
		}
		out = append(out, channel)
	}
	return out, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: channel %s: %w", id, core.ErrChannelNotFound)
	}
	return nil
}

// The message carries "duplicate key" so the service maps it to a conflict.
func duplicatePhoneNumberError(phoneNumber string) error {
	return fmt.Errorf("sqlstore: duplicate key phone_number %q", strings.TrimSpace(phoneNumber))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
