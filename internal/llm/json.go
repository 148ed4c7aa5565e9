package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSON returns the JSON object embedded in a model reply: the first
// ```json fence if there is one, otherwise the span from the first '{' to
// the last '}'.
func ExtractJSON(text string) ([]byte, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return []byte(strings.TrimSpace(m[1])), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	return []byte(text[start : end+1]), nil
}

// DecodeReply extracts, schema-checks and unmarshals a model reply into v.
// Every failure is a parse failure: the call succeeded but the answer is
// unusable, and a fresh call may do better.
func DecodeReply(text string, schema map[string]any, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return policy.Parse(err, "The analysis response did not contain any results.")
	}
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		return policy.Parse(err, "The analysis response was incomplete.")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return policy.Parse(fmt.Errorf("unmarshal reply: %w", err), "The analysis response was unreadable.")
	}
	return nil
}
