package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v50/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const issueLabel = "isp-report"

// IssuePublisher files an issue with the scan findings in a configured
// repository. Scans without new entries are skipped so the issue tracker
// only sees actionable reports.
type IssuePublisher struct {
	token      string
	repository string // owner/repo
	baseURL    string // empty targets github.com, otherwise a GHES instance
}

func NewIssuePublisher(token, repository, baseURL string) *IssuePublisher {
	return &IssuePublisher{
		token:      token,
		repository: repository,
		baseURL:    baseURL,
	}
}

func (p *IssuePublisher) PublishScanResult(result *models.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot publish nil scan result")
	}
	if p.token == "" {
		return fmt.Errorf("invalid configuration: missing GitHub token")
	}

	owner, repo, ok := strings.Cut(p.repository, "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("invalid configuration: repository must be owner/repo, got %q", p.repository)
	}

	if len(result.NewEntries) == 0 {
		logrus.WithField("router", result.RouterAddress).Info("No new entries, skipping GitHub issue")
		return nil
	}

	ctx := context.Background()
	client, err := p.newClient(ctx)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("ISP log report for %s - %s",
		result.RouterAddress, result.ScannedAt.Format("2006-01-02"))

	issue, _, err := client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(p.issueBody(result)),
		Labels: &[]string{issueLabel},
	})
	if err != nil {
		return fmt.Errorf("failed to create GitHub issue: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"issueNumber": issue.GetNumber(),
		"repository":  p.repository,
	}).Info("Created GitHub issue for scan result")
	return nil
}

func (p *IssuePublisher) newClient(ctx context.Context) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.token})
	tc := oauth2.NewClient(ctx, ts)

	if p.baseURL == "" {
		return github.NewClient(tc), nil
	}

	client, err := github.NewEnterpriseClient(p.baseURL, p.baseURL, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return client, nil
}

func (p *IssuePublisher) issueBody(result *models.ScanResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## ISP log report for `%s`\n\n", result.RouterAddress))
	sb.WriteString(fmt.Sprintf("- New entries: %d\n", len(result.NewEntries)))
	sb.WriteString(fmt.Sprintf("- Connection events: %d\n", len(result.Events)))
	sb.WriteString(fmt.Sprintf("- Outages: %d\n\n", len(result.Outages)))

	sb.WriteString("```\n")
	for _, entry := range result.NewEntries {
		sb.WriteString(entry.String() + "\n")
	}
	sb.WriteString("```\n")

	if len(result.Outages) > 0 {
		sb.WriteString("\n| # | Start | End | Duration |\n")
		sb.WriteString("|---|-------|-----|----------|\n")
		for i, outage := range result.Outages {
			end := "ongoing"
			duration := "-"
			if !outage.Open {
				end = outage.End.Local().Format(time.RFC3339)
				duration = outage.Duration.Round(time.Second).String()
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
				i+1, outage.Start.Local().Format(time.RFC3339), end, duration))
		}
	}

	return sb.String()
}

func (p *IssuePublisher) GetName() string {
	return "github-issue"
}
