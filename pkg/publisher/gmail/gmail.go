package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const (
	gmailAPIBaseURL = "https://gmail.googleapis.com"
	sendEndpoint    = "/gmail/v1/users/me/messages/send"
	gmailSendScope  = "https://www.googleapis.com/auth/gmail.send"

	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

// GmailPublisher mails the scan findings to a configured recipient. The
// Gmail API needs a three-legged OAuth2 flow: client secrets and the
// cached token live as JSON files under the cred dir, and the first run
// prompts for an authorization code on stdin.
type GmailPublisher struct {
	credDir   string
	recipient string

	baseURL    string
	httpClient *http.Client // set in tests to bypass the OAuth2 flow
}

func NewGmailPublisher(credDir, recipient string) *GmailPublisher {
	return &GmailPublisher{
		credDir:   credDir,
		recipient: recipient,
		baseURL:   gmailAPIBaseURL,
	}
}

func (p *GmailPublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}
	if p.recipient == "" {
		return fmt.Errorf("invalid configuration: missing Gmail recipient")
	}

	if len(result.NewEntries) == 0 {
		logrus.WithField("router", result.RouterAddress).Info("No new entries, skipping Gmail report")
		return nil
	}

	ctx := context.Background()

	client := p.httpClient
	if client == nil {
		var err error
		client, err = p.oauthClient(ctx)
		if err != nil {
			return err
		}
	}

	raw := base64.URLEncoding.EncodeToString([]byte(p.buildMessage(result)))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := p.baseURL + sendEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gmail API returned status %d: %s", resp.StatusCode, string(body))
	}

	logrus.WithField("recipient", p.recipient).Info("Sent Gmail report")
	return nil
}

// buildMessage assembles the RFC 822 message the Gmail API expects in
// the base64url raw field.
func (p *GmailPublisher) buildMessage(result *models.ScanResult) string {
	subject := fmt.Sprintf("ISP Log File Report - %s", time.Now().Format("2006-01-02 15:04:05"))

	var body strings.Builder
	body.WriteString(fmt.Sprintf("%d new log entries on %s:\r\n\r\n", len(result.NewEntries), result.RouterAddress))
	for _, entry := range result.NewEntries {
		body.WriteString(entry.String() + "\r\n")
	}

	if len(result.Outages) > 0 {
		body.WriteString("\r\nOutages:\r\n")
		for i, outage := range result.Outages {
			end := "ongoing"
			duration := "-"
			if !outage.Open {
				end = outage.End.Local().Format("2006-01-02 15:04:05")
				duration = outage.Duration.Round(time.Second).String()
			}
			body.WriteString(fmt.Sprintf("%d. %s to %s (%s)\r\n",
				i+1, outage.Start.Local().Format("2006-01-02 15:04:05"), end, duration))
		}
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("To: %s\r\n", p.recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())

	return msg.String()
}

func (p *GmailPublisher) oauthClient(ctx context.Context) (*http.Client, error) {
	credPath := filepath.Join(p.credDir, credentialsFile)
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	token, err := p.tokenFromFile()
	if err != nil {
		token, err = p.tokenFromPrompt(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := p.saveToken(token); err != nil {
			logrus.WithError(err).Warn("Failed to cache OAuth token")
		}
	}

	return config.Client(ctx, token), nil
}

func (p *GmailPublisher) tokenFromFile() (*oauth2.Token, error) {
	f, err := os.Open(filepath.Join(p.credDir, tokenFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return token, nil
}

func (p *GmailPublisher) tokenFromPrompt(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

func (p *GmailPublisher) saveToken(token *oauth2.Token) error {
	path := filepath.Join(p.credDir, tokenFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create token cache: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

func (p *GmailPublisher) GetName() string {
	return "gmail"
}
