package llm

import (
	"regexp"
	"strings"

	"roadnerd/internal/textutil"
)

// Sanitizer redacts credentials from text before it reaches the model or
// a log. Field machines routinely leak Wi-Fi keys through nmcli output.
type Sanitizer struct {
	patterns []*secretPattern
}

type secretPattern struct {
	regex       *regexp.Regexp
	replacement string
	name        string
}

func DefaultSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: []*secretPattern{
			{
				regex:       regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----[\s\S]*?-----END\s+([A-Z]+\s+)?PRIVATE KEY-----`),
				replacement: `[REDACTED_PRIVATE_KEY]`,
				name:        "Private Key",
			},
			{
				regex:       regexp.MustCompile(`(?i)(802-11-wireless-security\.psk|wpa[_-]?psk|wpa_passphrase|psk)\s*[=:]\s*["']?([^\s"']{8,})["']?`),
				replacement: `$1=[REDACTED_WIFI_KEY]`,
				name:        "Wi-Fi Key",
			},
			{
				regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[=:]\s*["']?([a-zA-Z0-9_\-]{20,})["']?`),
				replacement: `$1=[REDACTED_API_KEY]`,
				name:        "API Key",
			},
			{
				regex:       regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9_\-\.]+)`),
				replacement: `Bearer [REDACTED_TOKEN]`,
				name:        "Bearer Token",
			},
			{
				regex:       regexp.MustCompile(`(?i)(AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}`),
				replacement: `[REDACTED_AWS_KEY]`,
				name:        "AWS Access Key",
			},
			{
				regex:       regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
				replacement: `[REDACTED_GITHUB_TOKEN]`,
				name:        "GitHub PAT",
			},
			{
				regex:       regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token)\s*[=:]\s*["']?([^\s"']{6,})["']?`),
				replacement: `$1=[REDACTED]`,
				name:        "Password/Secret",
			},
			{
				regex:       regexp.MustCompile(`(?i)(mongodb|postgres|postgresql|mysql|redis|smb|ftp)://[^:/\s]+:([^@\s]+)@`),
				replacement: `$1://[user]:[REDACTED]@`,
				name:        "URL Password",
			},
			{
				regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
				replacement: `[REDACTED_JWT]`,
				name:        "JWT Token",
			},
		},
	}
}

func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}

// SanitizeWithReport also names the kinds of secret that were removed.
func (s *Sanitizer) SanitizeWithReport(input string) (sanitized string, found []string) {
	result := input
	for _, pattern := range s.patterns {
		if pattern.regex.MatchString(result) {
			found = append(found, pattern.name)
			result = pattern.regex.ReplaceAllString(result, pattern.replacement)
		}
	}
	return result, found
}

// Prepare redacts input, then truncates it to maxLen bytes keeping the
// head and tail. maxLen <= 0 disables truncation.
func (s *Sanitizer) Prepare(input string, maxLen int) string {
	sanitized := s.Sanitize(input)
	if maxLen > 0 {
		sanitized = TruncateForLLM(sanitized, maxLen)
	}
	return strings.TrimSpace(sanitized)
}

// TruncateForLLM keeps at most maxLen bytes, preferring head and tail.
// Cuts fall on rune boundaries.
func TruncateForLLM(input string, maxLen int) string {
	if len(input) <= maxLen {
		return input
	}
	if maxLen < 40 {
		return textutil.ClipBytes(input, maxLen)
	}
	half := (maxLen - 20) / 2
	return textutil.ClipBytes(input, half) + "\n...[truncated]...\n" + textutil.TailBytes(input, half)
}
