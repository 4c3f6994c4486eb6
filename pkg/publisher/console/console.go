package console

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/reporter"
)

// ConsolePublisher prints scan results to stdout.
type ConsolePublisher struct {
	formatter reporter.ReportFormatter
}

func NewConsolePublisher() *ConsolePublisher {
	return &ConsolePublisher{
		formatter: &reporter.ConsoleFormatter{},
	}
}

func (c *ConsolePublisher) PublishScanResult(result *models.ScanResult) error {
	logrus.Info("Publishing scan result to console")

	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}

	formatted := c.formatter.FormatReport(result)
	fmt.Print(formatted)

	logrus.Info("Successfully published scan result to console")
	return nil
}

func (c *ConsolePublisher) GetName() string {
	return "console"
}
