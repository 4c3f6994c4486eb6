package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const (
	embedColorBlue = 3447003
	embedColorRed  = 15158332

	maxEmbedEntries = 10
)

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
		return fmt.Errorf("invalid configuration: missing Discord webhook URL")
	}

	payload := map[string]interface{}{
		"content": fmt.Sprintf("FRITZ!Box ISP Report: %s", result.RouterAddress),
		"embeds":  p.createEmbeds(result),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := p.httpClient.Post(p.webhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (p *WebhookPublisher) createEmbeds(result *models.ScanResult) []map[string]interface{} {
	// Red when the scan found an outage, blue otherwise
	color := embedColorBlue
	if len(result.Outages) > 0 {
		color = embedColorRed
	}

	summary := map[string]interface{}{
		"title": "Scan Summary",
		"color": color,
		"fields": []map[string]interface{}{
			{
				"name":   "New Log Entries",
				"value":  fmt.Sprintf("%d", len(result.NewEntries)),
				"inline": true,
			},
			{
				"name":   "Connection Events",
				"value":  fmt.Sprintf("%d", len(result.Events)),
				"inline": true,
			},
			{
				"name":   "Outages",
				"value":  fmt.Sprintf("%d", len(result.Outages)),
				"inline": true,
			},
		},
	}

	embeds := []map[string]interface{}{summary}

	if len(result.NewEntries) > 0 {
		shown := result.NewEntries
		if len(shown) > maxEmbedEntries {
			shown = shown[:maxEmbedEntries]
		}

		var sb strings.Builder
		sb.WriteString("```\n")
		for _, entry := range shown {
			sb.WriteString(entry.String() + "\n")
		}
		sb.WriteString("```")

		embeds = append(embeds, map[string]interface{}{
			"title":       "New Entries",
			"color":       color,
			"description": sb.String(),
		})
	}

	return embeds
}

func (p *WebhookPublisher) GetName() string {
	return "discord-webhook"
}
