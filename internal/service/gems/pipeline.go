package gems

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaiwa-ai/gemrack/internal/model"
)

// maxResponseLen caps rendered responses so they stay postable in chat.
const maxResponseLen = 3500

const truncationMarker = "\n\n...(truncated)"

// userError is an expected, user-correctable problem. The engine renders
// its message directly instead of treating it as an infrastructure failure.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

// prepareInput normalizes raw user input according to the gem's input
// format. It returns a user error when the input cannot satisfy the format.
func prepareInput(format, raw string) (string, error) {
	switch format {
	case model.InputFree, model.InputBulletPoints:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return "", userErrorf("Input is empty. Pass input after the gem name, e.g. `/gem run <name> <input...>`.")
		}
		return trimmed, nil
	case model.InputURLList:
		urls := splitURLList(raw)
		if len(urls) == 0 {
			return "", userErrorf("No URLs found. This gem expects a URL list: pass URLs separated by spaces, commas, or newlines.")
		}
		lines := make([]string, len(urls))
		for i, u := range urls {
			lines[i] = "- " + u
		}
		return strings.Join(lines, "\n"), nil
	case model.InputJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return "", userErrorf("This gem expects JSON input, but the input did not parse: %v", err)
		}
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", userErrorf("This gem expects JSON input, but the input could not be re-encoded: %v", err)
		}
		return string(pretty), nil
	case model.InputSlackThreadURL:
		return "", userErrorf("The `%s` input format is not supported yet.", model.InputSlackThreadURL)
	default:
		// Unknown formats pass through untouched so stored gems created
		// by newer builds keep working.
		return raw, nil
	}
}

// splitURLList tokenizes on whitespace and commas. Every non-empty token
// is kept; the entries are not checked for URL shape.
func splitURLList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
	})
}

// buildInstruction assembles the user-turn prompt sent to the model:
// task summary, the prepared input under its format label, and a
// format-specific output directive. The assembly is deterministic so the
// same gem and input always produce the same prompt.
func buildInstruction(gem model.Gem, prepared string) string {
	var b strings.Builder
	if gem.Summary != "" {
		fmt.Fprintf(&b, "Task: %s\n\n", gem.Summary)
	}
	fmt.Fprintf(&b, "Input (%s):\n%s\n\n", LabelForInput(gem.InputFormat), prepared)
	fmt.Fprintf(&b, "Expected output: %s.\n", LabelForOutput(gem.OutputFormat))

	switch gem.OutputFormat {
	case model.OutputJSON:
		b.WriteString("Respond with valid JSON only. Do not wrap the JSON in markdown fences or add commentary.")
	case model.OutputMarpMarkdown:
		b.WriteString("Respond with a Marp markdown slide deck. Separate slides with `---` lines. Do not add commentary outside the deck.")
	case model.OutputMarkdown:
		b.WriteString("Respond in well-formed Markdown.")
	default:
		b.WriteString("Respond in plain text without markdown formatting.")
	}
	return b.String()
}

// responseMIMEType returns the response MIME hint for the generation
// request, or "" when the model should pick freely. Markdown variants
// omit the hint: postprocessing shapes those anyway.
func responseMIMEType(outputFormat string) string {
	switch outputFormat {
	case model.OutputJSON:
		return "application/json"
	case model.OutputPlainText:
		return "text/plain"
	default:
		return ""
	}
}

// postprocessOutput renders raw model output for the gem's output format.
// The bool reports whether the output is usable; on false the message
// explains the problem and carries the raw output for inspection.
func postprocessOutput(format, raw string) (string, bool) {
	switch format {
	case model.OutputJSON:
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(stripJSONFence(raw))), &v); err != nil {
			msg := fmt.Sprintf("The model output could not be parsed as JSON.\nRaw output:\n```\n%s\n```", raw)
			return truncate(msg), false
		}
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return truncate(fmt.Sprintf("The model output could not be re-encoded as JSON: %v", err)), false
		}
		return truncate("```\n" + string(pretty) + "\n```"), true
	case model.OutputMarpMarkdown:
		return truncate(ensureMarpHeader(raw)), true
	default:
		return truncate(raw), true
	}
}

// stripJSONFence removes a surrounding markdown code fence when the model
// ignored the no-fence directive.
func stripJSONFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return trimmed
}

// ensureMarpHeader injects the Marp frontmatter when the deck lacks one.
// Only the leading chunk is scanned so a literal "marp: true" deep in the
// body does not suppress the header.
func ensureMarpHeader(s string) string {
	head := s
	if len(head) > 400 {
		head = head[:400]
	}
	if strings.Contains(head, "marp: true") {
		return s
	}
	return "---\nmarp: true\n---\n\n" + s
}

// truncate cuts at maxResponseLen characters, not bytes, so a multi-byte
// rune is never split mid-sequence.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxResponseLen {
		return s
	}
	return string([]rune(s)[:maxResponseLen]) + truncationMarker
}
