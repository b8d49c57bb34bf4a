package ai

// repairJSON fixes the one malformation small models produce often enough to
// matter: object keys missing their opening quote (`, tags":` instead of
// `, "tags":`). Repair only runs outside string literals, so a key or value
// that happens to contain `, word":` is left intact. Anything it cannot
// recognize passes through untouched.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	inString := false
	escaped := false
	i := 0
	for i < len(in) {
		ch := in[i]
		out = append(out, ch)
		i++

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			continue
		}
		if ch != '{' && ch != ',' {
			continue
		}

		// Skip whitespace after { or ,
		for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t') {
			out = append(out, in[i])
			i++
		}

		// A bare identifier here is a key missing its opening quote if it runs
		// straight into `":`.
		start := i
		for i < len(in) && (isKeyRune(in[i])) {
			i++
		}
		if i > start && i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			// Emit the repaired key whole, closing quote and colon included,
			// so the string-literal tracking stays balanced.
			out = append(out, '"')
			out = append(out, in[start:i]...)
			out = append(out, '"', ':')
			i += 2
			continue
		}
		// Not a broken key; emit what was skipped.
		out = append(out, in[start:i]...)
	}
	return string(out)
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
