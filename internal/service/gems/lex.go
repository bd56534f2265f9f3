package gems

import "strings"

// lexTokens splits command text into shell-style tokens: whitespace
// separates tokens, single and double quotes group words, and a backslash
// escapes the next rune inside double quotes or bare text. Unterminated
// quotes consume the remainder of the input rather than erroring, which
// matches how people type in chat.
func lexTokens(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		inTok   bool
		quote   rune // 0, '\'' or '"'
		escaped bool
	)
	flush := func() {
		if inTok {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inTok = false
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			inTok = true
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inTok = true
		case r == '\\':
			escaped = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if escaped {
		cur.WriteRune('\\')
		inTok = true
	}
	flush()
	return tokens
}

func isPublicFlag(tok string) bool {
	return tok == "--public" || tok == "-p"
}

// stripPublicFlag removes every --public/-p token and reports whether
// any was present.
func stripPublicFlag(tokens []string) ([]string, bool) {
	out := tokens[:0:0]
	public := false
	for _, t := range tokens {
		if isPublicFlag(t) {
			public = true
			continue
		}
		out = append(out, t)
	}
	return out, public
}

// consumeField returns the first whitespace-delimited field of s and the
// remainder after it. The remainder keeps its own internal whitespace so
// multi-line input survives field consumption.
func consumeField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t\r\n")
	if idx := strings.IndexAny(s, " \t\r\n"); idx >= 0 {
		return s[:idx], s[idx:]
	}
	return s, ""
}

// rawAfterFields skips n non-flag fields (plus any interleaved
// --public/-p flags) and returns the raw remainder with leading
// whitespace and leading public flags removed. This is how the run
// branch recovers the gem input as a verbatim substring, newlines and
// all, instead of re-joining lexed tokens.
func rawAfterFields(s string, n int) string {
	for consumed := 0; consumed < n; {
		field, rest := consumeField(s)
		if field == "" {
			return ""
		}
		s = rest
		if isPublicFlag(field) {
			continue
		}
		consumed++
	}
	for {
		field, rest := consumeField(s)
		if !isPublicFlag(field) {
			return strings.TrimLeft(s, " \t\r\n")
		}
		s = rest
	}
}
