package scanning

import (
	"strings"
)

// cleanTranscript normalizes text returned by a vision model. Models tend to
// wrap their answer in markdown code blocks or add a lead-in sentence.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)

	// Remove opening and closing markdown code blocks
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	lines := strings.Split(text, "\n")
	if len(lines) > 1 && isLeadIn(lines[0]) {
		lines = lines[1:]
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isLeadIn(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	if !strings.HasSuffix(line, ":") {
		return false
	}
	return strings.HasPrefix(line, "here is") ||
		strings.HasPrefix(line, "here's") ||
		strings.HasPrefix(line, "voici")
}
