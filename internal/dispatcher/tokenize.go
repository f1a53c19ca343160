package dispatcher

import "strings"

// Tokenize splits s on spaces, treating double-quoted segments as one
// argument. Quotes are dropped, quoted content is trimmed, and "" yields an
// empty argument. An unterminated quote keeps whatever was collected.
func Tokenize(s string) []string {
	args := []string{}
	var cur strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"' && !inQuotes:
			inQuotes = true
		case r == '"' && inQuotes:
			inQuotes = false
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		case r == ' ' && !inQuotes:
			if cur.Len() > 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, strings.TrimSpace(cur.String()))
	}
	return args
}

// SplitCommand strips prefix from text and returns the lowercased command
// name and the remainder. ok is false when text does not start with prefix
// or names no command.
func SplitCommand(text, prefix string) (name, rest string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	body := text[len(prefix):]
	name, rest, _ = strings.Cut(body, " ")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), rest, true
}
