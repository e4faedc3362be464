package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// transcription is the JSON shape the LLM providers are asked to return
type transcription struct {
	Lines []string `json:"lines"`
}

// parseLinesJSON parses a transcription response into cleaned text lines.
// Models sometimes ignore the requested format and answer with the raw text,
// which may itself contain braces; whenever no transcription object can be
// decoded the response is split into lines instead.
func parseLinesJSON(text string) ([]string, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return cleanLines(strings.Split(text, "\n")), nil
	}

	var data transcription
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &data); err != nil {
		return cleanLines(strings.Split(text, "\n")), nil
	}

	return cleanLines(data.Lines), nil
}

// stripCodeFence removes markdown code blocks around a model response
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// cleanLines normalizes recognized text and drops blank lines, keeping order
func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, part := range strings.Split(Normalize(line), "\n") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
