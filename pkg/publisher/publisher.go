package publisher

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/console"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/discord"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/github"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/gmail"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/html"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/json"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher/slack"
)

// Publisher delivers a scan result to one target.
type Publisher interface {
	// PublishScanResult publishes a scan result and returns an error if it fails
	PublishScanResult(*models.ScanResult) error

	// GetName returns the publisher name
	GetName() string
}

// Factory creates publishers from configuration.
type Factory struct{}

func NewPublisherFactory() *Factory {
	return &Factory{}
}

// CreatePublisher builds the publisher matching the given type string.
func (f *Factory) CreatePublisher(publisherType string, config map[string]string) (Publisher, error) {
	switch publisherType {
	case "console":
		return console.NewConsolePublisher(), nil
	case "json":
		return json.NewJSONPublisher(
			config["jsonOutputPath"],
		), nil
	case "html":
		return html.NewHTMLPublisher(
			config["htmlOutputPath"],
			config["htmlTemplatePath"],
		), nil
	case "slack-webhook":
		return slack.NewWebhookPublisher(
			config["slackWebhookURL"],
		), nil
	case "slack-canvas":
		return slack.NewCanvasPublisher(
			config["slackBotToken"],
			config["slackChannelID"],
			config["slackCanvasID"],
		), nil
	case "discord-webhook":
		return discord.NewWebhookPublisher(
			config["discordWebhookURL"],
		), nil
	case "github-issue":
		return github.NewIssuePublisher(
			config["githubToken"],
			config["githubRepository"],
			config["githubBaseURL"],
		), nil
	case "gmail":
		return gmail.NewGmailPublisher(
			config["gmailCredDir"],
			config["gmailRecipient"],
		), nil
	default:
		return nil, fmt.Errorf("unknown publisher type: %s", publisherType)
	}
}

// PublishAll fans a scan result out to every publisher. All publishers
// are attempted even when one fails; the first error is returned.
func PublishAll(result *models.ScanResult, publishers []Publisher) error {
	var g errgroup.Group

	for _, p := range publishers {
		p := p
		g.Go(func() error {
			if err := p.PublishScanResult(result); err != nil {
				return fmt.Errorf("publisher %s: %w", p.GetName(), err)
			}
			return nil
		})
	}

	return g.Wait()
}
