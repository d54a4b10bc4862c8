package messaging

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var payloadEscaper = strings.NewReplacer("%", "%25", "&", "%26", "=", "%3D")

// Continuation is the state carried inside a postback payload between chat turns.
// It is encoded as "action=<verb>&k=v&..." with the action first.
type Continuation struct {
	Action string
	Values map[string]string
}

// NewContinuation starts a payload for action.
func NewContinuation(action string) Continuation {
	return Continuation{Action: action, Values: map[string]string{}}
}

// With returns a copy with key set. Empty values are dropped.
func (c Continuation) With(key, value string) Continuation {
	out := Continuation{Action: c.Action, Values: make(map[string]string, len(c.Values)+1)}
	for k, v := range c.Values {
		out.Values[k] = v
	}
	if value == "" {
		delete(out.Values, key)
	} else {
		out.Values[key] = value
	}
	return out
}

// Next returns a copy carrying all values under a new action.
func (c Continuation) Next(action string) Continuation {
	out := Continuation{Action: action, Values: make(map[string]string, len(c.Values))}
	for k, v := range c.Values {
		out.Values[k] = v
	}
	return out
}

// Get returns the value of key or "".
func (c Continuation) Get(key string) string {
	return c.Values[key]
}

// Int returns the value of key as an int, or fallback when missing or malformed.
func (c Continuation) Int(key string, fallback int) int {
	v, ok := c.Values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Encode renders the payload with keys in a stable order after the action.
func (c Continuation) Encode() string {
	var b strings.Builder
	b.WriteString("action=")
	b.WriteString(payloadEscaper.Replace(c.Action))
	for _, k := range orderedKeys(c.Values) {
		b.WriteByte('&')
		b.WriteString(payloadEscaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(payloadEscaper.Replace(c.Values[k]))
	}
	return b.String()
}

var keyOrder = []string{"booking", "date", "time", "guests", "table", "page"}

func orderedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, k := range keyOrder {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range values {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// ParseContinuation decodes a payload. Unknown keys are kept, malformed pairs skipped.
// ok is false when no action is present.
func ParseContinuation(data string) (Continuation, bool) {
	c := Continuation{Values: map[string]string{}}
	for _, pair := range strings.Split(data, "&") {
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key, err := url.PathUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.PathUnescape(v)
		if err != nil {
			continue
		}
		if key == "action" {
			if c.Action == "" {
				c.Action = val
			}
			continue
		}
		c.Values[key] = val
	}
	return c, c.Action != ""
}
