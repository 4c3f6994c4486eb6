package slack

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

func webhookTestResult() *models.ScanResult {
	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local)
	end := start.Add(3 * time.Minute)

	return &models.ScanResult{
		RouterAddress: "fritz.box",
		NewEntries: []models.LogEntry{
			{Timestamp: start, Message: "Internet connection cleared"},
			{Timestamp: end, Message: "Internet connection established"},
		},
		Events: []models.ConnectionEvent{
			{Kind: models.EventDisconnect, Entry: models.LogEntry{Timestamp: start, Message: "Internet connection cleared"}},
			{Kind: models.EventConnect, Entry: models.LogEntry{Timestamp: end, Message: "Internet connection established"}},
		},
		Outages: []models.Outage{
			{Start: start, End: end, Duration: 3 * time.Minute},
		},
		ScannedAt: end,
	}
}

func TestWebhookPublisher_PublishScanResult(t *testing.T) {
	var body []byte
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer mockServer.Close()

	publisher := NewWebhookPublisher(mockServer.URL)

	err := publisher.PublishScanResult(webhookTestResult())
	assert.NoError(t, err)

	payload := string(body)
	assert.Contains(t, payload, "blocks")
	assert.Contains(t, payload, "FRITZ!Box ISP Report: fritz.box")
	assert.Contains(t, payload, "Internet connection established")
}

func TestWebhookPublisher_MissingURL(t *testing.T) {
	publisher := NewWebhookPublisher("")

	err := publisher.PublishScanResult(webhookTestResult())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestWebhookPublisher_NilResult(t *testing.T) {
	publisher := NewWebhookPublisher("http://example.invalid")

	err := publisher.PublishScanResult(nil)
	assert.Error(t, err)
}

func TestWebhookPublisher_ServerError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	publisher := NewWebhookPublisher(mockServer.URL)

	err := publisher.PublishScanResult(webhookTestResult())
	assert.Error(t, err)
}

func TestCreateMessageBlocks(t *testing.T) {
	publisher := NewWebhookPublisher("http://example.invalid")

	blocks := publisher.createMessageBlocks(webhookTestResult())
	assert.True(t, len(blocks) >= 5, "Should have at least 5 blocks")

	headerBlock, ok := blocks[0].(*slack.HeaderBlock)
	if assert.True(t, ok, "First block should be HeaderBlock") {
		assert.Equal(t, "FRITZ!Box ISP Report: fritz.box", headerBlock.Text.Text)
	}

	summaryBlock, ok := blocks[2].(*slack.SectionBlock)
	if assert.True(t, ok, "Third block should be SectionBlock") {
		assert.Contains(t, summaryBlock.Text.Text, "New Log Entries: 2")
		assert.Contains(t, summaryBlock.Text.Text, "Outages: 1")
	}

	entriesBlock, ok := blocks[4].(*slack.SectionBlock)
	if assert.True(t, ok, "Fifth block should be SectionBlock") {
		assert.Contains(t, entriesBlock.Text.Text, "Internet connection cleared")
	}
}

func TestCreateMessageBlocksTruncatesEntries(t *testing.T) {
	publisher := NewWebhookPublisher("http://example.invalid")

	result := &models.ScanResult{RouterAddress: "fritz.box", ScannedAt: time.Now()}
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local)
	for i := 0; i < maxWebhookEntries+5; i++ {
		result.NewEntries = append(result.NewEntries, models.LogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Message:   "PPPoE error: Timeout.",
		})
	}

	blocks := publisher.createMessageBlocks(result)
	entriesBlock, ok := blocks[len(blocks)-1].(*slack.SectionBlock)
	if assert.True(t, ok, "Last block should be SectionBlock") {
		assert.Contains(t, entriesBlock.Text.Text, "5 more entries omitted")
	}
}

func TestWebhookGetName(t *testing.T) {
	publisher := NewWebhookPublisher("")
	assert.Equal(t, "slack-webhook", publisher.GetName())
}
