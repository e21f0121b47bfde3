package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/shopdesk/internal/messenger"
)

// SlackAPI abstracts the subset of the Slack client used by SlackMessenger.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackMessenger implements messenger.Messenger for Slack.
type SlackMessenger struct {
	api SlackAPI
}

var _ messenger.Messenger = (*SlackMessenger)(nil) //nolint:gochecknoglobals // compile-time check

func NewSlackMessenger(api SlackAPI) *SlackMessenger {
	return &SlackMessenger{api: api}
}

// NewFromToken builds a messenger on a bot token.
func NewFromToken(token string) (*SlackMessenger, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("slack.NewFromToken: empty token")
	}
	return NewSlackMessenger(slacklib.New(token)), nil
}

// Send posts msg to a channel, or to the bot's DM with a user when target is a
// user ID. The plain text doubles as the push-notification fallback.
func (m *SlackMessenger) Send(ctx context.Context, target string, msg messenger.Message) (messenger.MessageID, error) {
	if target == "" {
		return "", errors.New("slack.SlackMessenger.Send: empty target")
	}

	_, ts, err := m.api.PostMessageContext(ctx, target,
		slacklib.MsgOptionText(FallbackText(msg), false),
		slacklib.MsgOptionBlocks(BuildNotificationBlocks(msg)...),
	)
	if err != nil {
		return "", fmt.Errorf("slack.SlackMessenger.Send: %w", err)
	}

	return messenger.MessageID(ts), nil
}

func (m *SlackMessenger) Platform() string {
	return "slack"
}
