package json

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

type JSONPublisher struct {
	outputPath string // empty writes to stdout
}

func NewJSONPublisher(outputPath string) *JSONPublisher {
	return &JSONPublisher{
		outputPath: outputPath,
	}
}

func (p *JSONPublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan result to JSON: %w", err)
	}

	if p.outputPath == "" {
		fmt.Println(string(data))
		return nil
	}

	if err := os.WriteFile(p.outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write JSON to file: %w", err)
	}

	return nil
}

func (p *JSONPublisher) GetName() string {
	return "json"
}
