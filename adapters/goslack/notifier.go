package goslack

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-channels/core"
	"github.com/goliatone/go-logger/glog"

	"github.com/slack-go/slack"
)

// NoticeWhatsAppDisconnect tags the reconnect prompt sent to account admins.
const NoticeWhatsAppDisconnect = "whatsapp_disconnect"

// Notifier posts the reconnect notice to a slack channel. Without a bot
// token or target channel it only logs.
type Notifier struct {
	client      *slack.Client
	channel     string
	frontendURL string
	logger      core.Logger
	clientOpts  []slack.Option
}

type Option func(*Notifier)

func WithLogger(logger core.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithFrontendURL links the notice to the channel settings page.
func WithFrontendURL(url string) Option {
	return func(n *Notifier) {
		n.frontendURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithClientOptions passes options to the slack client, OptionAPIURL in tests.
func WithClientOptions(opts ...slack.Option) Option {
	return func(n *Notifier) {
		n.clientOpts = append(n.clientOpts, opts...)
	}
}

func NewNotifier(botToken string, channel string, opts ...Option) *Notifier {
	n := &Notifier{
		channel: strings.TrimSpace(channel),
		logger:  glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if token := strings.TrimSpace(botToken); token != "" {
		n.client = slack.New(token, n.clientOpts...)
	}
	n.clientOpts = nil
	return n
}

func (n *Notifier) IsEnabled() bool {
	return n != nil && n.client != nil && n.channel != ""
}

func (n *Notifier) NotifyReauthorizationRequired(ctx context.Context, channel core.Channel) error {
	if !n.IsEnabled() {
		if n != nil {
			n.logger.WithContext(ctx).Info("slack notifier disabled, skipping reconnect notice",
				"channel_id", channel.ID,
				"notice", NoticeWhatsAppDisconnect,
			)
		}
		return nil
	}

	text := n.noticeText(channel)
	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
			slack.NewContextBlock(NoticeWhatsAppDisconnect,
				slack.NewTextBlockObject(slack.MarkdownType, "account "+channel.AccountID+" · channel "+channel.ID, false, false),
			),
		),
	)
	if err != nil {
		return fmt.Errorf("goslack: posting reconnect notice: %w", err)
	}
	n.logger.WithContext(ctx).Info("posted reconnect notice to slack",
		"channel_id", channel.ID,
		"ts", ts,
	)
	return nil
}

func (n *Notifier) noticeText(channel core.Channel) string {
	text := fmt.Sprintf(":warning: WhatsApp number %s lost its connection and must be reauthorized.", channel.PhoneNumber)
	if n.frontendURL != "" && channel.AccountID != "" {
		text += fmt.Sprintf(" <%s/app/accounts/%s/settings/inboxes|Reconnect it>", n.frontendURL, channel.AccountID)
	}
	return text
}

var _ core.ReauthorizationNotifier = (*Notifier)(nil)
