package slack

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

// maxWebhookEntries caps the entries quoted in a webhook message so the
// section block stays under Slack's text length limit.
const maxWebhookEntries = 10

type WebhookPublisher struct {
	webhookURL string
	httpClient *http.Client
}

func NewWebhookPublisher(webhookURL string) *WebhookPublisher {
	return &WebhookPublisher{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *WebhookPublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}
	if p.webhookURL == "" {
		return fmt.Errorf("invalid configuration: missing Slack webhook URL")
	}

	blocks := p.createMessageBlocks(result)

	msg := &slack.WebhookMessage{
		Blocks: &slack.Blocks{BlockSet: blocks},
	}

	if err := slack.PostWebhookCustomHTTP(p.webhookURL, p.httpClient, msg); err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	return nil
}

func (p *WebhookPublisher) createMessageBlocks(result *models.ScanResult) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text",
			fmt.Sprintf("FRITZ!Box ISP Report: %s", result.RouterAddress), false, false)),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("*Scan Summary*\n"+
					"• New Log Entries: %d\n"+
					"• Connection Events: %d\n"+
					"• Outages: %d\n\n"+
					"*Scanned:* %s",
					len(result.NewEntries),
					len(result.Events),
					len(result.Outages),
					result.ScannedAt.Format("2006-01-02 15:04:05 MST")),
				false, false),
			nil, nil,
		),
	}

	if len(result.NewEntries) == 0 {
		return blocks
	}

	shown := result.NewEntries
	if len(shown) > maxWebhookEntries {
		shown = shown[:maxWebhookEntries]
	}

	var sb strings.Builder
	sb.WriteString("```\n")
	for _, entry := range shown {
		sb.WriteString(entry.String() + "\n")
	}
	sb.WriteString("```")
	if hidden := len(result.NewEntries) - len(shown); hidden > 0 {
		sb.WriteString(fmt.Sprintf("\n_%d more entries omitted_", hidden))
	}

	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false),
			nil, nil,
		),
	)

	return blocks
}

func (p *WebhookPublisher) GetName() string {
	return "slack-webhook"
}
