package gmail

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

func gmailTestResult() *models.ScanResult {
	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local)
	end := start.Add(3 * time.Minute)

	return &models.ScanResult{
		RouterAddress: "fritz.box",
		NewEntries: []models.LogEntry{
			{Timestamp: start, Message: "Internet connection cleared"},
			{Timestamp: end, Message: "Internet connection established"},
		},
		Outages: []models.Outage{
			{Start: start, End: end, Duration: 3 * time.Minute},
		},
		ScannedAt: end,
	}
}

func newTestPublisher(serverURL string, client *http.Client) *GmailPublisher {
	p := NewGmailPublisher("creds", "reports@example.com")
	p.baseURL = serverURL
	p.httpClient = client
	return p
}

func TestPublishScanResult(t *testing.T) {
	var gotRaw string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)

		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotRaw = payload["raw"]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "msg-1"})
	}))
	defer mockServer.Close()

	publisher := newTestPublisher(mockServer.URL, mockServer.Client())

	err := publisher.PublishScanResult(gmailTestResult())
	assert.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(gotRaw)
	assert.NoError(t, err)

	message := string(decoded)
	assert.Contains(t, message, "To: reports@example.com")
	assert.Contains(t, message, "Subject: ISP Log File Report -")
	assert.Contains(t, message, "2 new log entries on fritz.box")
	assert.Contains(t, message, "Internet connection established")
	assert.Contains(t, message, "Outages:")
}

func TestPublishScanResultSkipsWhenNoNewEntries(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected when there are no new entries")
	}))
	defer mockServer.Close()

	publisher := newTestPublisher(mockServer.URL, mockServer.Client())

	result := &models.ScanResult{RouterAddress: "fritz.box"}
	assert.NoError(t, publisher.PublishScanResult(result))
}

func TestPublishScanResultMissingRecipient(t *testing.T) {
	publisher := NewGmailPublisher("creds", "")

	err := publisher.PublishScanResult(gmailTestResult())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestPublishScanResultNil(t *testing.T) {
	publisher := NewGmailPublisher("creds", "reports@example.com")
	assert.Error(t, publisher.PublishScanResult(nil))
}

func TestPublishScanResultAPIError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "insufficient scope"}`))
	}))
	defer mockServer.Close()

	publisher := newTestPublisher(mockServer.URL, mockServer.Client())

	err := publisher.PublishScanResult(gmailTestResult())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestBuildMessage(t *testing.T) {
	publisher := NewGmailPublisher("creds", "reports@example.com")

	message := publisher.buildMessage(gmailTestResult())

	// Headers separated from the body by a blank line per RFC 822
	assert.True(t, strings.Contains(message, "\r\n\r\n"), "Message should separate headers from body")
	assert.True(t, strings.HasPrefix(message, "To: reports@example.com\r\n"), "Message should start with the To header")
	assert.Contains(t, message, "3m0s")
}

func TestOauthClientMissingCredentials(t *testing.T) {
	publisher := NewGmailPublisher(t.TempDir(), "reports@example.com")

	err := publisher.PublishScanResult(gmailTestResult())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "client secret")
}

func TestGetName(t *testing.T) {
	publisher := NewGmailPublisher("", "")
	assert.Equal(t, "gmail", publisher.GetName())
}
