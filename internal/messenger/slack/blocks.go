package slack

import (
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/shopdesk/internal/messenger"
)

// Slack rejects header text over 150 characters.
const maxHeaderLength = 150

// BuildNotificationBlocks renders a header for the subject, when present, and
// a markdown section for the body.
func BuildNotificationBlocks(msg messenger.Message) []slacklib.Block {
	blocks := make([]slacklib.Block, 0, 2)

	if msg.Subject != "" {
		subject := msg.Subject
		if r := []rune(subject); len(r) > maxHeaderLength {
			subject = string(r[:maxHeaderLength-1]) + "…"
		}
		blocks = append(blocks, slacklib.NewHeaderBlock(
			slacklib.NewTextBlockObject(slacklib.PlainTextType, subject, false, false),
		))
	}

	blocks = append(blocks, slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, msg.Body, false, false),
		nil,
		nil,
	))

	return blocks
}

// FallbackText is the plain text shown in notifications and clients without blocks.
func FallbackText(msg messenger.Message) string {
	if msg.Subject == "" {
		return msg.Body
	}
	return msg.Subject + "\n" + msg.Body
}
