package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything the toolkit reads from the environment. An
// optional dotenv file (ENV_FILE, default creds/.env) is loaded first;
// variables already set in the real environment always win.
type Config struct {
	RouterAddresses []string
	RouterUsername  string
	RouterPassword  string
	RouterPort      int

	LogLevel   string
	LogDir     string
	LogStore   string
	SQLitePath string
	RulesFile  string

	Notifiers       []string
	RequestTimeout  int
	ConcurrentScans int

	SlackWebhookURL   string
	SlackBotToken     string
	SlackChannelID    string
	SlackCanvasID     string
	DiscordWebhookURL string
	GitHubToken       string
	GitHubRepository  string
	GitHubBaseURL     string
	GmailCredDir      string
	GmailRecipient    string
	JSONOutputPath    string
	HTMLOutputPath    string
	HTMLTemplatePath  string
}

func LoadConfig() (*Config, error) {
	loadEnvFile()

	cfg := &Config{}

	addresses, err := getEnv("ISP_RTR_ADDRESS", true)
	if err != nil {
		return nil, err
	}
	cfg.RouterAddresses = splitList(addresses)
	if len(cfg.RouterAddresses) == 0 {
		return nil, fmt.Errorf("ISP_RTR_ADDRESS is not set")
	}

	cfg.RouterUsername, err = getEnv("ISP_RTR_UNAME", true)
	if err != nil {
		return nil, err
	}

	cfg.RouterPassword, err = getEnv("ISP_RTR_PWORD", true)
	if err != nil {
		return nil, err
	}

	cfg.RouterPort = getIntEnvWithDefault("ISP_RTR_PORT", 49000)

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogDir = getEnvWithDefault("LOG_DIR", "logs")

	cfg.LogStore = getEnvWithDefault("LOG_STORE", "file")
	if cfg.LogStore != "file" && cfg.LogStore != "sqlite" {
		return nil, fmt.Errorf("LOG_STORE must be file or sqlite, got %q", cfg.LogStore)
	}
	cfg.SQLitePath = getEnvWithDefault("SQLITE_PATH", "logs/fritz-isp-toolkit.db")
	cfg.RulesFile = getEnvWithDefault("RULES_FILE", "")

	cfg.Notifiers = splitList(getEnvWithDefault("NOTIFIERS", "console"))
	cfg.RequestTimeout = getIntEnvWithDefault("REQUEST_TIMEOUT", 30)
	cfg.ConcurrentScans = getIntEnvWithDefault("CONCURRENT_SCANS", 2)

	cfg.SlackWebhookURL = getEnvWithDefault("SLACK_WEBHOOK_URL", "")
	cfg.SlackBotToken = getEnvWithDefault("SLACK_BOT_TOKEN", "")
	cfg.SlackChannelID = getEnvWithDefault("SLACK_CHANNEL_ID", "")
	cfg.SlackCanvasID = getEnvWithDefault("SLACK_CANVAS_ID", "")
	cfg.DiscordWebhookURL = getEnvWithDefault("DISCORD_WEBHOOK_URL", "")
	cfg.GitHubToken = getEnvWithDefault("GITHUB_TOKEN", "")
	cfg.GitHubRepository = getEnvWithDefault("GITHUB_REPOSITORY", "")
	cfg.GitHubBaseURL = getEnvWithDefault("GITHUB_BASE_URL", "")
	cfg.GmailCredDir = getEnvWithDefault("GMAIL_CRED_DIR", "creds")
	cfg.GmailRecipient = getEnvWithDefault("GMAIL_RECIPIENT", "")
	cfg.JSONOutputPath = getEnvWithDefault("JSON_OUTPUT_PATH", "")
	cfg.HTMLOutputPath = getEnvWithDefault("HTML_OUTPUT_PATH", "")
	cfg.HTMLTemplatePath = getEnvWithDefault("HTML_TEMPLATE_PATH", "")

	return cfg, nil
}

// PublisherSettings renders the publisher-facing subset of the config as
// the flat map the publisher factory consumes.
func (c *Config) PublisherSettings() map[string]string {
	return map[string]string{
		"jsonOutputPath":    c.JSONOutputPath,
		"htmlOutputPath":    c.HTMLOutputPath,
		"htmlTemplatePath":  c.HTMLTemplatePath,
		"slackWebhookURL":   c.SlackWebhookURL,
		"slackBotToken":     c.SlackBotToken,
		"slackChannelID":    c.SlackChannelID,
		"slackCanvasID":     c.SlackCanvasID,
		"discordWebhookURL": c.DiscordWebhookURL,
		"githubToken":       c.GitHubToken,
		"githubRepository":  c.GitHubRepository,
		"githubBaseURL":     c.GitHubBaseURL,
		"gmailCredDir":      c.GmailCredDir,
		"gmailRecipient":    c.GmailRecipient,
	}
}

// loadEnvFile loads the dotenv file named by ENV_FILE when it exists.
// godotenv.Load never overrides variables that are already set.
func loadEnvFile() {
	envFile := getEnvWithDefault("ENV_FILE", "creds/.env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		logrus.WithError(err).WithField("envFile", envFile).Warn("Failed to load env file")
	}
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func getEnv(key string, required bool) (string, error) {
	value := os.Getenv(key)
	if value == "" && required {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
			return value
		}
	}
	return defaultValue
}
