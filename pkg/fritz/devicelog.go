package fritz

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

const (
	serviceDeviceInfo = "DeviceInfo:1"

	actionGetDeviceLog = "GetDeviceLog"
	actionGetInfo      = "GetInfo"

	// Device log lines start with a fixed-width "31.12.23 14:03:04 "
	// prefix; the message begins at column 18.
	deviceTimeLayout = "02.01.06 15:04:05"
	deviceMsgOffset  = 18
)

// DeviceInfo is the subset of DeviceInfo:1#GetInfo this toolkit reports.
type DeviceInfo struct {
	ModelName       string
	SoftwareVersion string
	SerialNumber    string
	UpTime          time.Duration
}

// FetchDeviceLog retrieves the device log and parses it into entries
// sorted ascending by timestamp. An empty log yields an empty slice.
func (c *Client) FetchDeviceLog(ctx context.Context) ([]models.LogEntry, error) {
	out, err := c.Call(ctx, serviceDeviceInfo, actionGetDeviceLog, nil)
	if err != nil {
		return nil, err
	}
	return parseDeviceLog(out["NewDeviceLog"])
}

// GetDeviceInfo retrieves model and firmware details of the box.
func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	out, err := c.Call(ctx, serviceDeviceInfo, actionGetInfo, nil)
	if err != nil {
		return nil, err
	}

	info := &DeviceInfo{
		ModelName:       out["NewModelName"],
		SoftwareVersion: out["NewSoftwareVersion"],
		SerialNumber:    out["NewSerialNumber"],
	}
	if secs, err := strconv.ParseInt(out["NewUpTime"], 10, 64); err == nil {
		info.UpTime = time.Duration(secs) * time.Second
	}
	return info, nil
}

// parseDeviceLog splits the raw NewDeviceLog payload into entries. Blank
// lines are skipped; a line whose timestamp prefix does not parse is an
// error, because the device log format is fixed and a mismatch means we
// are not looking at a FRITZ!OS log.
func parseDeviceLog(raw string) ([]models.LogEntry, error) {
	lines := strings.Split(raw, "\n")
	entries := make([]models.LogEntry, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseDeviceLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// parseDeviceLine parses one "31.12.23 14:03:04 message" log line. The
// box stamps entries in its local timezone, so the prefix is interpreted
// in the host's local time the same way the logfile rendering uses it.
func parseDeviceLine(line string) (models.LogEntry, error) {
	if len(line) < deviceMsgOffset {
		return models.LogEntry{}, fmt.Errorf("device log line too short: %q", line)
	}
	ts, err := time.ParseInLocation(deviceTimeLayout, line[:deviceMsgOffset-1], time.Local)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("parse device log timestamp in %q: %w", line, err)
	}
	return models.LogEntry{
		Timestamp: ts,
		Message:   strings.TrimSpace(line[deviceMsgOffset:]),
	}, nil
}
