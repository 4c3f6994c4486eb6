package analyzer

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

// Rule maps a message pattern to the connection event it signals.
type Rule struct {
	Event   models.EventKind `yaml:"event"`
	Pattern string           `yaml:"pattern"`
}

// DefaultRules cover the FRITZ!OS connection messages in their English
// and German wording.
func DefaultRules() []Rule {
	return []Rule{
		{
			Event:   models.EventConnect,
			Pattern: `(?i)internet connection (was )?established|internetverbindung wurde erfolgreich hergestellt`,
		},
		{
			Event:   models.EventDisconnect,
			Pattern: `(?i)internet connection (cleared|disconnected)|internetverbindung wurde getrennt`,
		},
		{
			Event:   models.EventDSLSync,
			Pattern: `(?i)dsl is available|dsl synchronization|dsl ist verfügbar|dsl-synchronisierung`,
		},
		{
			Event:   models.EventAuthFailure,
			Pattern: `(?i)pppoe error|login to the internet service provider failed|anmeldung beim internetanbieter ist fehlgeschlagen`,
		},
	}
}

// Analyzer classifies device log entries into connection events and
// derives outage windows from them.
type Analyzer struct {
	rules []compiledRule
}

type compiledRule struct {
	event   models.EventKind
	pattern *regexp.Regexp
}

// New returns an analyzer with the default FRITZ!OS rules.
func New() *Analyzer {
	a, err := NewFromRules(DefaultRules())
	if err != nil {
		// The default patterns are constants; failing to compile them is
		// a programming error.
		panic(err)
	}
	return a
}

// NewFromRules compiles the given rules. The rule order is the match
// order.
func NewFromRules(rules []Rule) (*Analyzer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule pattern %q: %w", rule.Pattern, err)
		}
		compiled = append(compiled, compiledRule{event: rule.Event, pattern: re})
	}
	return &Analyzer{rules: compiled}, nil
}

// Load reads a YAML rules file and returns an analyzer using those rules
// instead of the defaults. An invalid pattern fails the load; rules are
// never silently skipped.
func Load(path string) (*Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	a, err := NewFromRules(rules)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"path":  path,
		"rules": len(rules),
	}).Info("Loaded analyzer rules")
	return a, nil
}

// Classify matches the entry against the rules; the first matching rule
// wins.
func (a *Analyzer) Classify(entry models.LogEntry) (models.ConnectionEvent, bool) {
	for _, rule := range a.rules {
		if rule.pattern.MatchString(entry.Message) {
			return models.ConnectionEvent{Kind: rule.event, Entry: entry}, true
		}
	}
	return models.ConnectionEvent{}, false
}

// Analyze classifies the entries (sorted ascending by timestamp) and
// pairs each disconnect with the next connect into an outage window. A
// disconnect without a later connect yields an open outage.
func (a *Analyzer) Analyze(entries []models.LogEntry) ([]models.ConnectionEvent, []models.Outage) {
	var events []models.ConnectionEvent
	var outages []models.Outage
	var openedAt *time.Time

	for _, entry := range entries {
		event, ok := a.Classify(entry)
		if !ok {
			continue
		}
		events = append(events, event)

		switch event.Kind {
		case models.EventDisconnect:
			if openedAt == nil {
				start := event.Entry.Timestamp
				openedAt = &start
			}
		case models.EventConnect:
			if openedAt != nil {
				end := event.Entry.Timestamp
				outages = append(outages, models.Outage{
					Start:    *openedAt,
					End:      end,
					Duration: end.Sub(*openedAt),
				})
				openedAt = nil
			}
		}
	}

	if openedAt != nil {
		outages = append(outages, models.Outage{Start: *openedAt, Open: true})
	}
	return events, outages
}
