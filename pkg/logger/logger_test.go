package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel logrus.Level
		wantErr   bool
	}{
		{
			name:      "debug level",
			level:     "debug",
			wantLevel: logrus.DebugLevel,
		},
		{
			name:      "info level",
			level:     "info",
			wantLevel: logrus.InfoLevel,
		},
		{
			name:      "warn level",
			level:     "warn",
			wantLevel: logrus.WarnLevel,
		},
		{
			name:      "error level",
			level:     "error",
			wantLevel: logrus.ErrorLevel,
		},
		{
			name:      "uppercase is accepted",
			level:     "DEBUG",
			wantLevel: logrus.DebugLevel,
		},
		{
			name:    "invalid level",
			level:   "loud",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("InitLogger(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("wrapper level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}
			// The toolkit packages log through the logrus standard
			// logger, so the level must propagate there too.
			if logrus.GetLevel() != tt.wantLevel {
				t.Errorf("standard logger level = %v, want %v", logrus.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestLogOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)

	if err := InitLogger("info"); err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	Info("scan cycle finished")

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if msg, ok := output["msg"].(string); !ok || msg != "scan cycle finished" {
		t.Errorf("Log message = %v, want scan cycle finished", output["msg"])
	}
	if level, ok := output["level"].(string); !ok || level != "info" {
		t.Errorf("Log level = %v, want info", output["level"])
	}

	// The formatter stamps entries with a parseable timestamp.
	ts, ok := output["time"].(string)
	if !ok {
		t.Fatalf("Log output has no time field: %v", output)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("Log timestamp %q does not parse: %v", ts, err)
	}
}

func TestLogWithFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)

	WithFields(logrus.Fields{
		"router":     "fritz.box",
		"newEntries": 3,
	}).Info("Router scan finished")

	var output map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if value, ok := output["router"].(string); !ok || value != "fritz.box" {
		t.Errorf("Field router = %v, want fritz.box", output["router"])
	}
	if value, ok := output["newEntries"].(float64); !ok || int(value) != 3 {
		t.Errorf("Field newEntries = %v, want 3", output["newEntries"])
	}
}
