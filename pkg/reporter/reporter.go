package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const bannerWidth = 80

type ReportFormatter interface {
	FormatReport(*models.ScanResult) string
}

type ConsoleFormatter struct{}

type Reporter struct {
	formatter ReportFormatter
}

func NewReporter(formatter ReportFormatter) *Reporter {
	logrus.Debug("Initializing new reporter")
	return &Reporter{formatter: formatter}
}

func (r *Reporter) GenerateReport(result *models.ScanResult) error {
	output, err := r.FormatResults(result)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate report")
		return fmt.Errorf("formatting error: %w", err)
	}
	fmt.Print(output)
	return nil
}

func (r *Reporter) FormatResults(result *models.ScanResult) (string, error) {
	if result == nil {
		logrus.Error("Received nil scan result")
		return "", fmt.Errorf("cannot format nil result")
	}

	formatted := r.formatter.FormatReport(result)
	logrus.WithField("formattedLength", len(formatted)).Debug("Successfully formatted results")
	return formatted, nil
}

// FormatReport renders one scan result the way the original toolkit
// printed it: a banner of dashes, the count line, one line per new entry,
// then event and outage tables when the analyzer found any.
func (f *ConsoleFormatter) FormatReport(result *models.ScanResult) string {
	if result == nil {
		logrus.Error("Received nil result in console formatter")
		return "No scan result\n"
	}

	banner := strings.Repeat("-", bannerWidth)

	var sb strings.Builder
	sb.WriteString(banner + "\n")

	if len(result.NewEntries) == 0 {
		sb.WriteString(fmt.Sprintf("No new entries on %s.\n", result.RouterAddress))
		sb.WriteString(banner + "\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%d new log entries on %s:\n\n", len(result.NewEntries), result.RouterAddress))
	for _, entry := range result.NewEntries {
		sb.WriteString(entry.String() + "\n")
	}

	if len(result.Events) > 0 {
		sb.WriteString("\nConnection events:\n")
		sb.WriteString(fmt.Sprintf("%-3s %-26s %-13s %s\n", "NO", "TIME", "EVENT", "MESSAGE"))
		for i, event := range result.Events {
			sb.WriteString(fmt.Sprintf("%-3d %-26s %-13s %s\n",
				i+1,
				event.Entry.Timestamp.Local().Format(time.RFC3339),
				event.Kind,
				truncateString(event.Entry.Message, 60),
			))
		}
	}

	if len(result.Outages) > 0 {
		sb.WriteString("\nOutages:\n")
		sb.WriteString(fmt.Sprintf("%-3s %-26s %-26s %s\n", "NO", "START", "END", "DURATION"))
		for i, outage := range result.Outages {
			end := "(ongoing)"
			duration := "-"
			if !outage.Open {
				end = outage.End.Local().Format(time.RFC3339)
				duration = formatDuration(outage.Duration)
			}
			sb.WriteString(fmt.Sprintf("%-3d %-26s %-26s %s\n",
				i+1, outage.Start.Local().Format(time.RFC3339), end, duration))
		}
	}

	sb.WriteString(banner + "\n")
	return sb.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s + strings.Repeat(" ", maxLen-len(s))
	}
	return s[:maxLen-2] + ".."
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
