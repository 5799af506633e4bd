package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	slackSvc "github.com/mortality-lab/kcor/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds Slack notification configuration
type Slack struct {
	WebhookURL string
	OAuthToken string
	ChannelID  string
}

// Flags returns CLI flags for Slack configuration
func (s *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for run notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("KCOR_SLACK_WEBHOOK_URL"),
			Destination: &s.WebhookURL,
		},
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack bot token for run notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("KCOR_SLACK_OAUTH_TOKEN"),
			Destination: &s.OAuthToken,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID to post run notifications to (with --slack-oauth-token)",
			Category:    "Slack",
			Sources:     cli.EnvVars("KCOR_SLACK_CHANNEL"),
			Destination: &s.ChannelID,
		},
	}
}

// Configure creates the run notifier. It returns nil when Slack is not
// configured. The webhook wins when both modes are configured.
func (s *Slack) Configure(ctx context.Context) (interfaces.Notifier, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger := ctxlog.From(ctx)
	switch {
	case s.WebhookURL != "":
		logger.Info("Configuring Slack webhook notifier")
		return slackSvc.NewWebhook(s.WebhookURL), nil
	case s.OAuthToken != "":
		logger.Info("Configuring Slack bot notifier", "channel", s.ChannelID)
		return slackSvc.New(s.OAuthToken, s.ChannelID), nil
	default:
		logger.Debug("Slack not configured - run notifications disabled")
		return nil, nil
	}
}

// IsConfigured checks if any notification mode is configured
func (s *Slack) IsConfigured() bool {
	return s.WebhookURL != "" || s.OAuthToken != ""
}

// Validate validates the Slack configuration
func (s *Slack) Validate() error {
	if s.WebhookURL == "" && s.OAuthToken != "" && s.ChannelID == "" {
		return goerr.New("slack channel is required with a bot token")
	}
	return nil
}

// LogValue returns structured log value
func (s Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("has_webhook_url", s.WebhookURL != ""),
		slog.Bool("has_oauth_token", s.OAuthToken != ""),
		slog.String("channel", s.ChannelID),
	)
}
