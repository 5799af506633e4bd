package slack

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Service posts run notifications to a Slack channel with a bot token
type Service struct {
	client    *slack.Client
	channelID string
}

// New creates a new Slack service
func New(token, channelID string, options ...slack.Option) *Service {
	return &Service{
		client:    slack.New(token, options...),
		channelID: channelID,
	}
}

// PostMessage sends a message to the configured Slack channel
func (s *Service) PostMessage(ctx context.Context, options ...slack.MsgOption) (string, string, error) {
	channel, timestamp, err := s.client.PostMessageContext(ctx, s.channelID, options...)
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to post message to Slack", goerr.V("channel", s.channelID))
	}
	return channel, timestamp, nil
}

// NotifyRun implements interfaces.Notifier
func (s *Service) NotifyRun(ctx context.Context, run *model.RunRecord) error {
	_, ts, err := s.PostMessage(ctx,
		slack.MsgOptionText(BuildRunText(run), false),
		slack.MsgOptionBlocks(BuildRunBlocks(run)...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to notify run", goerr.V("run_id", run.ID))
	}

	ctxlog.From(ctx).Debug("Run notification posted", "run_id", run.ID, "channel", s.channelID, "ts", ts)
	return nil
}

// Webhook posts run notifications to a Slack incoming webhook
type Webhook struct {
	url string
}

// NewWebhook creates a new webhook notifier
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url}
}

// NotifyRun implements interfaces.Notifier
func (w *Webhook) NotifyRun(ctx context.Context, run *model.RunRecord) error {
	msg := &slack.WebhookMessage{
		Text:   BuildRunText(run),
		Blocks: &slack.Blocks{BlockSet: BuildRunBlocks(run)},
	}
	if err := slack.PostWebhookContext(ctx, w.url, msg); err != nil {
		return goerr.Wrap(err, "failed to post run to Slack webhook", goerr.V("run_id", run.ID))
	}

	ctxlog.From(ctx).Debug("Run notification posted to webhook", "run_id", run.ID)
	return nil
}

// Compile-time interface checks
var (
	_ interfaces.Notifier = (*Service)(nil)
	_ interfaces.Notifier = (*Webhook)(nil)
)
