package perf

import "regexp"

// Credential-like substrings are stripped from query text before storage.
// The patterns cover key=value and key: value forms plus bearer tokens.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|auth)(\s*[=:]\s*)'[^']*'`),
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|auth)(\s*[=:]\s*)"[^"]*"`),
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|auth)(\s*[=:]\s*)[^\s'",;)]+`),
	regexp.MustCompile(`(?i)(bearer)(\s+)[a-z0-9._~+/-]+=*`),
}

// RedactQuery removes credential-like substrings from query text. Only the
// credential value is replaced; the key and its separator stay as written.
func RedactQuery(query string) string {
	out := query
	for _, re := range redactPatterns {
		out = re.ReplaceAllString(out, "$1$2[REDACTED]")
	}
	return out
}
