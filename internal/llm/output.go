package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

// ansiPattern matches terminal escape sequences emitted by CLI tools.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// resultFields are the JSON keys checked, in order, for the answer text
// when a tool wraps its output in a JSON object.
var resultFields = []string{"result", "response", "answer"}

// parseOutput strips tool-specific framing from captured stdout and
// returns the plain answer text. For JSON-mode providers the object's
// result field is extracted; unparseable output falls back to the raw
// text, matching tools that only sometimes wrap their answers. Empty
// post-cleanup output is ErrEmptyOutput.
func parseOutput(raw, format string) (string, error) {
	cleaned := strings.TrimSpace(ansiPattern.ReplaceAllString(raw, ""))

	if format == config.OutputJSON {
		if extracted, ok := extractJSONResult(cleaned); ok {
			cleaned = extracted
		}
	}

	if cleaned == "" {
		return "", ErrEmptyOutput
	}
	return cleaned, nil
}

// extractJSONResult pulls the answer out of a JSON object that may be
// surrounded by log noise on either side.
func extractJSONResult(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &payload); err != nil {
		return "", false
	}
	for _, field := range resultFields {
		if v, ok := payload[field].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
