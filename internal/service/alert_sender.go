package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// AlertSender delivers rendered alert text to an operator channel.
type AlertSender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// SlackAlertSender posts alerts to a Slack incoming webhook.
type SlackAlertSender struct {
	webhookURL string
}

// NewSlackAlertSender constructs a Slack webhook sender.
func NewSlackAlertSender(webhookURL string) (*SlackAlertSender, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, errors.New("slack webhook url is required")
	}
	return &SlackAlertSender{webhookURL: webhookURL}, nil
}

func (s *SlackAlertSender) Name() string { return "slack" }

func (s *SlackAlertSender) Send(ctx context.Context, text string) error {
	if err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

// DiscordAlertSender executes a Discord webhook.
type DiscordAlertSender struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

// NewDiscordAlertSender parses a webhook URL of the form .../webhooks/{id}/{token}.
func NewDiscordAlertSender(webhookURL string) (*DiscordAlertSender, error) {
	webhookID, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordAlertSender{session: session, webhookID: webhookID, token: token}, nil
}

func (s *DiscordAlertSender) Name() string { return "discord" }

func (s *DiscordAlertSender) Send(ctx context.Context, text string) error {
	_, err := s.session.WebhookExecute(s.webhookID, s.token, false, &discordgo.WebhookParams{
		Content: text,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("execute discord webhook: %w", err)
	}
	return nil
}

func parseDiscordWebhook(raw string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", "", fmt.Errorf("invalid discord webhook url %q", raw)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url %q has no id/token", raw)
}

// LogAlertSender writes alerts to the structured log. Used when no webhook is configured.
type LogAlertSender struct {
	logger zerolog.Logger
}

// NewLogAlertSender constructs a log-only sender.
func NewLogAlertSender(logger zerolog.Logger) *LogAlertSender {
	return &LogAlertSender{logger: logger.With().Str("component", "log_alert_sender").Logger()}
}

func (s *LogAlertSender) Name() string { return "log" }

func (s *LogAlertSender) Send(_ context.Context, text string) error {
	s.logger.Warn().Str("alert", text).Msg("api failure alert")
	return nil
}

// NewAlertSender selects a sender by provider name.
func NewAlertSender(provider, slackWebhook, discordWebhook string, logger zerolog.Logger) (AlertSender, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "slack":
		return NewSlackAlertSender(slackWebhook)
	case "discord":
		return NewDiscordAlertSender(discordWebhook)
	case "", "log":
		return NewLogAlertSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown alert provider %q", provider)
	}
}
