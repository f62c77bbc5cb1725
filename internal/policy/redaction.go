package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)

	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]{8,}`)
	tokenPattern  = regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret)["':=\s]+[A-Za-z0-9._\-]{8,}`)
)

// RedactTranscript masks common high-risk PII patterns in spoken transcript
// text before it is written anywhere durable (logs, terminal history).
func RedactTranscript(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactSecrets masks credentials that providers sometimes echo back inside
// error bodies, so an upstream 4xx/5xx can be logged verbatim without leaking
// the key that caused it.
func RedactSecrets(input string) string {
	out := bearerPattern.ReplaceAllString(input, "Bearer [REDACTED]")
	out = tokenPattern.ReplaceAllString(out, "$1=[REDACTED]")
	return out
}
