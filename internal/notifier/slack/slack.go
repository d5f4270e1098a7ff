package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/notifier"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending operational alerts to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncOpsNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncOpsNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

// NotifyChargeFailed alerts the ops channel that a sponsor charge was declined.
func (s *Notifier) NotifyChargeFailed(event *ledger.MatchEvent, reason string, dryRun bool) error {
	msg := s.formatChargeFailed(event, reason)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// NotifyRateLimited alerts the ops channel that a recipient tripped the burst limit.
func (s *Notifier) NotifyRateLimited(recipientUserID string, count int, dryRun bool) error {
	msg := s.formatRateLimited(recipientUserID, count)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// formatChargeFailed creates the Slack message for a declined sponsor charge using Block Kit.
func (s *Notifier) formatChargeFailed(event *ledger.MatchEvent, reason string) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "Sponsor charge failed", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	detailsText := fmt.Sprintf("Amount: %s\nSponsor: %s\nRecipient: %s\nReason: %s",
		formatCents(event.MatchAmountCents),
		event.SponsorID,
		event.RecipientUserID,
		reason,
	)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", detailsText, true, false), nil, nil))

	footer := fmt.Sprintf("Match event: %s • Save event: %s • %s",
		event.ID,
		event.SaveEventID,
		event.CreatedAt.Format("Jan 2, 2006 at 3:04 PM"),
	)
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", footer, true, false)))

	return slack.NewBlockMessage(blocks...)
}

// formatRateLimited creates the Slack message for a tripped burst limit.
func (s *Notifier) formatRateLimited(recipientUserID string, count int) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "Save burst limit tripped", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	detailsText := fmt.Sprintf("Recipient %s produced %d match events in the last minute. Their save stream may be misbehaving.", recipientUserID, count)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", detailsText, true, false), nil, nil))

	return slack.NewBlockMessage(blocks...)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
