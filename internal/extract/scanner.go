package extract

import "strings"

// maxRestarts bounds rescans after unterminated objects so pathological
// input like "{{{{..." stays linear-ish.
const maxRestarts = 64

// scanObject returns the balanced-brace substring starting at s[start],
// which must be '{'. Braces inside JSON strings are ignored. ok is false
// when input ends before the object closes.
//
// Iterating bytes is safe for the ASCII delimiters because UTF-8 never
// reuses ASCII bytes inside multi-byte sequences.
func scanObject(s string, start int) (obj string, ok bool) {
	var (
		depth    int
		inString bool
		escape   bool
	)
	for i := start; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Objects returns every top-level balanced {...} substring of s.
func Objects(s string) []string {
	found, _ := objects(s)
	return found
}

// objects also reports how many objects were left open. After an
// unterminated object the scan resumes just past its opening brace, so
// complete objects nested inside a truncated wrapper are still recovered.
func objects(s string) (found []string, unterminated int) {
	i := 0
	for i < len(s) {
		j := strings.IndexByte(s[i:], '{')
		if j < 0 {
			break
		}
		start := i + j
		obj, ok := scanObject(s, start)
		if ok {
			found = append(found, obj)
			i = start + len(obj)
			continue
		}
		unterminated++
		if unterminated > maxRestarts {
			break
		}
		i = start + 1
	}
	return found, unterminated
}
