// Package transcript turns free-form conversation logs into ordered messages.
package transcript

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jordanhubbard/convreview/pkg/models"
)

// DefaultAgentNames are the sender labels treated as the automated agent
// when no list is configured.
var DefaultAgentNames = []string{"sophie", "agent", "assistant", "ai", "bot", "us"}

var (
	// [14:05 03/02/2024] Sender: text  or  [14:05:09 03/02/2024] Sender: text
	bracketTimeFirst = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\s+(\d{1,2}/\d{1,2}/\d{4})\]\s*([^:]+?):\s*(.*)$`)
	// [03/02/2024, 14:05] Sender: text
	bracketDateFirst = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{4}),?\s+(\d{1,2}:\d{2}(?::\d{2})?)\]\s*([^:]+?):\s*(.*)$`)
	// Sender (03/02/2024 14:05): text
	senderParen = regexp.MustCompile(`^([^(:\[]+?)\s*\((\d{1,2}/\d{1,2}/\d{4}),?\s+(\d{1,2}:\d{2}(?::\d{2})?)\):\s*(.*)$`)
	// Sender: text
	bare = regexp.MustCompile(`^([^:\[(]{1,40}?):\s*(.*)$`)
)

// Parser converts transcripts into Message slices. The zero value uses
// DefaultAgentNames.
type Parser struct {
	agents map[string]bool
}

// NewParser returns a parser that classifies the given sender labels as the
// agent, case-insensitively.
func NewParser(agentNames []string) *Parser {
	if len(agentNames) == 0 {
		agentNames = DefaultAgentNames
	}
	agents := make(map[string]bool, len(agentNames))
	for _, n := range agentNames {
		agents[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return &Parser{agents: agents}
}

// Parse extracts messages from text. Lines matching no known shape are
// skipped. The result is sorted ascending by timestamp with timestamp-less
// messages first; ties keep input order.
func (p *Parser) Parse(text string) []models.Message {
	if p.agents == nil {
		p = NewParser(nil)
	}

	var out []models.Message
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		msg, ok := p.parseLine(line)
		if !ok {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		if a.IsZero() || b.IsZero() {
			return a.IsZero() && !b.IsZero()
		}
		return a.Before(b)
	})
	return out
}

func (p *Parser) parseLine(line string) (models.Message, bool) {
	var sender, content string
	var ts time.Time

	if m := bracketTimeFirst.FindStringSubmatch(line); m != nil {
		t, ok := parseTimestamp(m[2], m[1])
		if !ok {
			return models.Message{}, false
		}
		ts, sender, content = t, m[3], m[4]
	} else if m := bracketDateFirst.FindStringSubmatch(line); m != nil {
		t, ok := parseTimestamp(m[1], m[2])
		if !ok {
			return models.Message{}, false
		}
		ts, sender, content = t, m[3], m[4]
	} else if m := senderParen.FindStringSubmatch(line); m != nil {
		t, ok := parseTimestamp(m[2], m[3])
		if !ok {
			return models.Message{}, false
		}
		ts, sender, content = t, m[1], m[4]
	} else if m := bare.FindStringSubmatch(line); m != nil {
		sender, content = m[1], m[2]
	} else {
		return models.Message{}, false
	}

	sender = strings.TrimSpace(sender)
	content = strings.TrimSpace(content)
	if sender == "" || content == "" {
		return models.Message{}, false
	}

	return models.Message{
		Timestamp: ts,
		Sender:    p.classify(sender),
		Content:   content,
	}, true
}

func (p *Parser) classify(label string) models.Sender {
	if p.agents[strings.ToLower(label)] {
		return models.SenderAgent
	}
	return models.SenderCustomer
}

// parseTimestamp reads day-first dates. Times are interpreted as UTC.
func parseTimestamp(date, clock string) (time.Time, bool) {
	layout := "2/1/2006 15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2/1/2006 15:04:05"
	}
	t, err := time.Parse(layout, date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
