package handoff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

var (
	spanRE    = regexp.MustCompile(`(?s)\[\[HA_LOCAL:\s*(.*?)\s*\]\]`)
	textRE    = regexp.MustCompile(`(?:^|[^\w])["']?text["']?\s*:\s*(?:"([^"]*)"|'([^']*)')`)
	agentIDRE = regexp.MustCompile(`(?:^|[^\w])["']?agent_id["']?\s*:\s*(?:"([^"]*)"|'([^']*)')`)
)

// Payload is the command carried by a directive.
type Payload struct {
	Text string
	// AgentID is the agent the model asked for, empty when absent. Local
	// dispatch always targets the default agent regardless.
	AgentID string
}

// tier decodes the inside of a directive span. ok is false when the tier
// does not recognize the input and the next one should be tried.
type tier func(raw string) (p Payload, ok bool)

// tiers are tried in order. The last one always succeeds.
var tiers = []tier{
	strictTier,
	repairTier,
	scrapeTier,
}

// ParseDirective extracts the payload of the directive span in buf.
// It fails only when buf holds no complete span; a span whose payload is
// unreadable yields an empty Payload.
func ParseDirective(buf string) (Payload, error) {
	m := spanRE.FindStringSubmatch(strings.TrimSpace(buf))
	if m == nil {
		return Payload{}, ErrMalformedDirective
	}
	return ParsePayload(m[1]), nil
}

// ParsePayload decodes the text between the markers.
func ParsePayload(raw string) Payload {
	raw = strings.TrimSpace(raw)
	for _, t := range tiers {
		if p, ok := t(raw); ok {
			return p
		}
	}
	return Payload{}
}

func strictTier(raw string) (Payload, bool) {
	return decodeObject([]byte(raw), false)
}

// repairTier accepts single quotes, unquoted keys, trailing commas and
// Python literals. Repair can turn almost anything into an object, so a
// result without a text key is left to the scrape tier.
func repairTier(raw string) (Payload, bool) {
	fixed, err := llm.RepairJSON(raw)
	if err != nil {
		return Payload{}, false
	}
	return decodeObject([]byte(fixed), true)
}

func scrapeTier(raw string) (Payload, bool) {
	var p Payload
	if m := textRE.FindStringSubmatch(raw); m != nil {
		p.Text = strings.TrimSpace(m[1] + m[2])
	}
	if m := agentIDRE.FindStringSubmatch(raw); m != nil {
		p.AgentID = strings.TrimSpace(m[1] + m[2])
	}
	return p, true
}

func decodeObject(b []byte, needText bool) (Payload, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return Payload{}, false
	}
	if dec.More() {
		return Payload{}, false
	}
	if _, ok := obj["text"]; needText && !ok {
		return Payload{}, false
	}
	p := Payload{Text: strings.TrimSpace(stringify(obj["text"]))}
	if s, ok := obj["agent_id"].(string); ok {
		p.AgentID = strings.TrimSpace(s)
	}
	return p, true
}

// stringify renders a decoded JSON value as text. null renders empty.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
