package json

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

func TestPublishScanResultToFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.json")
	publisher := NewJSONPublisher(outputPath)

	result := &models.ScanResult{
		RouterAddress: "fritz.box",
		NewEntries: []models.LogEntry{
			{Timestamp: time.Date(2024, 1, 2, 15, 0, 0, 0, time.Local), Message: "Internet connection established"},
		},
	}

	err := publisher.PublishScanResult(result)
	assert.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	assert.NoError(t, err)

	var decoded models.ScanResult
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "fritz.box", decoded.RouterAddress)
	assert.Len(t, decoded.NewEntries, 1)
	assert.Equal(t, "Internet connection established", decoded.NewEntries[0].Message)
}

func TestPublishScanResultToStdout(t *testing.T) {
	publisher := NewJSONPublisher("")

	result := &models.ScanResult{RouterAddress: "fritz.box"}
	assert.NoError(t, publisher.PublishScanResult(result))
}

func TestPublishScanResultNil(t *testing.T) {
	publisher := NewJSONPublisher("")
	assert.Error(t, publisher.PublishScanResult(nil))
}

func TestPublishScanResultBadPath(t *testing.T) {
	publisher := NewJSONPublisher(filepath.Join(t.TempDir(), "missing", "report.json"))

	result := &models.ScanResult{RouterAddress: "fritz.box"}
	assert.Error(t, publisher.PublishScanResult(result))
}

func TestGetName(t *testing.T) {
	publisher := NewJSONPublisher("")
	assert.Equal(t, "json", publisher.GetName())
}
