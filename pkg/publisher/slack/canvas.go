package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const (
	slackAPIBaseURL            = "https://slack.com/api"
	canvasEditEndpoint         = "/canvases.edit"
	canvasOperationReplace     = "replace"
	canvasDocumentTypeMarkdown = "markdown"
	canvasPublisherName        = "slack-canvas"

	maxCanvasAttempts = 4
	initialBackoff    = 1 * time.Second
	backoffFactor     = 2.0
)

// CanvasPublisher maintains a living ISP status canvas. The canvases API
// has no SDK support at this slack-go version, so it posts raw REST with
// a Bearer token.
type CanvasPublisher struct {
	httpClient *http.Client
	channelID  string
	apiToken   string
	canvasID   string
	baseURL    string
}

func NewCanvasPublisher(token, channelID, canvasID string) *CanvasPublisher {
	return &CanvasPublisher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		channelID:  channelID,
		apiToken:   token,
		canvasID:   canvasID,
		baseURL:    slackAPIBaseURL,
	}
}

func (c *CanvasPublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}

	logrus.WithFields(logrus.Fields{
		"newEntries": len(result.NewEntries),
		"canvasID":   c.canvasID,
	}).Info("Starting Canvas publication process")

	if c.apiToken == "" {
		return fmt.Errorf("invalid configuration: missing Slack API token")
	}
	if !strings.HasPrefix(c.apiToken, "xoxb-") {
		return fmt.Errorf("invalid configuration: Slack API token must start with 'xoxb-'")
	}
	if c.channelID == "" {
		return fmt.Errorf("invalid configuration: missing Slack channel ID")
	}
	if c.canvasID == "" {
		return fmt.Errorf("invalid configuration: missing Canvas ID")
	}

	blocks := c.createCanvasBlocks(result)
	logrus.WithFields(logrus.Fields{
		"blockCount": len(blocks),
		"canvasID":   c.canvasID,
	}).Debug("Generated Canvas blocks")

	if err := c.updateCanvas(context.Background(), blocks); err != nil {
		return err
	}

	logrus.WithField("canvasID", c.canvasID).Info("Successfully updated Canvas content")
	return nil
}

// updateCanvas replaces the canvas content. Network errors, rate limits
// and server errors are retried with exponential backoff, where a
// Retry-After header overrides the computed wait. Client errors and
// Slack ok=false responses fail immediately.
func (c *CanvasPublisher) updateCanvas(ctx context.Context, blocks []slack.Block) error {
	markdown := convertBlocksToMarkdown(blocks)
	logrus.WithField("markdown", markdown).Debug("Generated Markdown content for Canvas")

	body, err := json.Marshal(map[string]interface{}{
		"canvas_id": c.canvasID,
		"token":     c.apiToken,
		"changes": []map[string]interface{}{
			{
				"operation": canvasOperationReplace,
				"document_content": map[string]interface{}{
					"type":     canvasDocumentTypeMarkdown,
					"markdown": markdown,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal canvas update payload for canvas %s: %w", c.canvasID, err)
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxCanvasAttempts; attempt++ {
		retryAfter, retryable, err := c.postCanvasEdit(ctx, body)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"canvasID": c.canvasID,
				"attempt":  attempt,
			}).Info("Canvas content replaced")
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err

		if attempt == maxCanvasAttempts {
			break
		}
		wait := backoff
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if retryAfter > 0 {
			wait = retryAfter
		}
		logrus.WithFields(logrus.Fields{
			"canvasID": c.canvasID,
			"attempt":  attempt,
			"wait":     wait.String(),
		}).Warnf("Canvas update failed, retrying: %v", err)
		if err := sleepContext(ctx, wait); err != nil {
			return fmt.Errorf("canvas update aborted while waiting to retry: %w", err)
		}
	}

	return fmt.Errorf("canvas update failed after %d attempts for canvas %s: %w", maxCanvasAttempts, c.canvasID, lastErr)
}

// postCanvasEdit performs a single canvases.edit call. It reports
// whether a failure is worth retrying and how long a rate limit asked
// us to wait.
func (c *CanvasPublisher) postCanvasEdit(ctx context.Context, body []byte) (retryAfter time.Duration, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+canvasEditEndpoint, bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("failed to create canvas update request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, true, fmt.Errorf("canvas update request for %s: %w", c.canvasID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read canvas update response: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"statusCode": resp.StatusCode,
		"canvasID":   c.canvasID,
	}).Debug("Canvas update API response received")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if sec, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && sec > 0 {
			retryAfter = time.Duration(sec) * time.Second
		}
		return retryAfter, true, fmt.Errorf("rate limited updating canvas %s", c.canvasID)
	case resp.StatusCode >= 500:
		return 0, true, fmt.Errorf("server error (status %d) updating canvas %s: %s", resp.StatusCode, c.canvasID, respBody)
	case resp.StatusCode >= 400:
		return 0, false, fmt.Errorf("client error (status %d) updating canvas %s: %s", resp.StatusCode, c.canvasID, respBody)
	}

	var apiResp struct {
		Ok    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return 0, false, fmt.Errorf("failed to decode canvas update response: %w", err)
	}
	if !apiResp.Ok {
		return 0, false, fmt.Errorf("slack API error updating canvas %s: %s", c.canvasID, apiResp.Error)
	}
	return 0, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func convertBlocksToMarkdown(blocks []slack.Block) string {
	var markdown strings.Builder
	markdown.WriteString("# FRITZ!Box ISP Status\n\n")

	for _, block := range blocks {
		if section, ok := block.(*slack.SectionBlock); ok && section.Text != nil {
			markdown.WriteString(section.Text.Text)
			markdown.WriteString("\n\n")
		}
	}

	return markdown.String()
}

func (c *CanvasPublisher) createCanvasBlocks(result *models.ScanResult) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", "FRITZ!Box ISP Status", false, false)),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("📊 *Scan Summary*\n"+
					"• Router: %s\n"+
					"• New Log Entries: %d\n"+
					"• Connection Events: %d\n"+
					"• Outages: %d\n\n"+
					"*Last Updated:* %s by fritz-isp-toolkit",
					result.RouterAddress,
					len(result.NewEntries),
					len(result.Events),
					len(result.Outages),
					time.Now().Format("2006-01-02 15:04:05 MST")),
				false,
				false,
			),
			nil, nil,
		),
		slack.NewDividerBlock(),
	}

	for i, outage := range result.Outages {
		blocks = append(blocks, c.createOutageRow(outage, i))
	}

	if len(result.NewEntries) > 0 {
		var sb strings.Builder
		sb.WriteString("*Recent Entries*\n```\n")
		shown := result.NewEntries
		if len(shown) > maxWebhookEntries {
			shown = shown[len(shown)-maxWebhookEntries:]
		}
		for _, entry := range shown {
			sb.WriteString(entry.String() + "\n")
		}
		sb.WriteString("```")
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false),
			nil, nil,
		))
	}

	return blocks
}

func (c *CanvasPublisher) createOutageRow(outage models.Outage, index int) slack.Block {
	end := "ongoing"
	duration := "-"
	if !outage.Open {
		end = outage.End.Local().Format("2006-01-02 15:04:05")
		duration = outage.Duration.Round(time.Second).String()
	}

	var mdText strings.Builder
	mdText.WriteString(fmt.Sprintf("* *[%d]* Outage\n", index+1))
	mdText.WriteString(fmt.Sprintf("  * *Start:* `%s`\n", outage.Start.Local().Format("2006-01-02 15:04:05")))
	mdText.WriteString(fmt.Sprintf("  * *End:* `%s`\n", end))
	mdText.WriteString(fmt.Sprintf("  * *Duration:* %s", duration))

	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, mdText.String(), false, false),
		nil,
		nil,
	)
}

func (c *CanvasPublisher) GetName() string {
	return canvasPublisherName
}
