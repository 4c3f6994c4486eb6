package console

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

func TestPublishScanResult(t *testing.T) {
	publisher := NewConsolePublisher()

	result := &models.ScanResult{
		RouterAddress: "fritz.box",
	}

	err := publisher.PublishScanResult(result)
	assert.NoError(t, err)
}

func TestPublishScanResultNil(t *testing.T) {
	publisher := NewConsolePublisher()

	err := publisher.PublishScanResult(nil)
	assert.Error(t, err)
}

func TestGetName(t *testing.T) {
	publisher := NewConsolePublisher()
	assert.Equal(t, "console", publisher.GetName())
}
