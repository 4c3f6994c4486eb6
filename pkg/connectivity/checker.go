package connectivity

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds configuration for the connectivity checker
type Config struct {
	// Address is the FRITZ!Box hostname or IP address to check
	Address string

	// Port is the TR-064 port the descriptor is served on
	Port int

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryInterval is the duration to wait between retries in seconds
	RetryInterval int

	// Timeout is the timeout for each connection attempt in seconds
	Timeout int
}

// RouterInfo holds the device block of the TR-064 descriptor
type RouterInfo struct {
	FriendlyName string `xml:"device>friendlyName"`
	Manufacturer string `xml:"device>manufacturer"`
	ModelName    string `xml:"device>modelName"`
	ModelNumber  string `xml:"device>modelNumber"`
}

// Checker provides functionality to verify network connectivity to a FRITZ!Box
type Checker struct {
	config Config
	client *http.Client
}

// NewChecker creates a new connectivity checker with the provided configuration
func NewChecker(config Config) *Checker {
	// Set default values if not provided
	if config.Port <= 0 {
		config.Port = 49000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 5
	}

	return &Checker{
		config: config,
		client: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
}

func (c *Checker) descriptorURL() string {
	return fmt.Sprintf("http://%s:%d/tr64desc.xml", c.config.Address, c.config.Port)
}

// VerifyConnectivity checks if the FRITZ!Box TR-064 endpoint is reachable.
// Returns nil if connectivity is successful, otherwise returns an error
func (c *Checker) VerifyConnectivity() error {
	logrus.WithField("router", c.config.Address).Info("Starting FRITZ!Box connectivity check")

	if c.config.Address == "" {
		return fmt.Errorf("router address is not set")
	}

	// The TR-064 descriptor is served unauthenticated, so it makes a
	// cheap reachability probe before any SOAP calls are attempted.
	descURL := c.descriptorURL()

	var routerInfo *RouterInfo

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"url":     descURL,
		}).Debug("Attempting to connect to FRITZ!Box")

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.config.Timeout)*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, descURL, nil)
		if err != nil {
			logrus.WithError(err).Error("Failed to create request")
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err == nil {
			defer resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				// Try to parse the device descriptor
				body, readErr := io.ReadAll(resp.Body)
				if readErr == nil {
					info := &RouterInfo{}
					if xmlErr := xml.Unmarshal(body, info); xmlErr == nil {
						routerInfo = info
						logrus.WithFields(logrus.Fields{
							"modelName": info.ModelName,
						}).Info("Successfully connected to FRITZ!Box")
					} else {
						logrus.WithError(xmlErr).Warn("Failed to parse device descriptor")
					}
				} else {
					logrus.WithError(readErr).Warn("Failed to read response body")
				}

				if routerInfo == nil {
					logrus.Info("Successfully connected to FRITZ!Box")
				}
				return nil
			}
			logrus.WithField("statusCode", resp.StatusCode).Warn("Received non-success status code")
		} else {
			logrus.WithError(err).Warn("Connection attempt failed")
		}

		if attempt < c.config.MaxRetries {
			sleepDuration := time.Duration(c.config.RetryInterval) * time.Second
			logrus.WithField("retryIn", sleepDuration.String()).Debug("Retrying connection")
			time.Sleep(sleepDuration)
		}
	}

	return fmt.Errorf("failed to connect to FRITZ!Box after %d attempts", c.config.MaxRetries)
}

// GetRouterInfo retrieves the device block of the TR-064 descriptor.
// Returns router information if successful, otherwise returns an error
func (c *Checker) GetRouterInfo() (*RouterInfo, error) {
	if c.config.Address == "" {
		return nil, fmt.Errorf("router address is not set")
	}

	descURL := c.descriptorURL()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.config.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to router: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("router returned non-success status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	info := &RouterInfo{}
	if err := xml.Unmarshal(body, info); err != nil {
		return nil, fmt.Errorf("failed to parse device descriptor: %w", err)
	}

	return info, nil
}

// MustVerifyConnectivity checks connectivity and panics if it fails
// This is useful for application initialization where connectivity is required
func (c *Checker) MustVerifyConnectivity() {
	if err := c.VerifyConnectivity(); err != nil {
		logrus.WithError(err).Error("FRITZ!Box connectivity check failed")
		panic("FRITZ!Box is not reachable, application cannot start")
	}

	// Try to get and log router information
	info, err := c.GetRouterInfo()
	if err != nil {
		logrus.WithError(err).Warn("Failed to retrieve FRITZ!Box information")
	} else {
		logrus.WithFields(logrus.Fields{
			"friendlyName": info.FriendlyName,
			"modelName":    info.ModelName,
			"modelNumber":  info.ModelNumber,
		}).Info("FRITZ!Box information")
	}

	logrus.Info("FRITZ!Box connectivity check passed")
}
