package pipeline

import (
	"regexp"
	"strings"

	"github.com/fiscogo/fisco/internal/chat"
)

// PII flag identifiers recorded on the state and forwarded to usage
// accounting. They match the golden gate's safety-check names.
const (
	PIIFiscalCode = "fiscal_code"
	PIICardNumber = "card_number"
	PIIEmail      = "email_address"
)

// Redaction placeholders replace matched spans in user messages before the
// text reaches any external provider.
var piiPatterns = []struct {
	flag        string
	pattern     *regexp.Regexp
	replacement string
}{
	{
		flag:        PIIFiscalCode,
		pattern:     regexp.MustCompile(`(?i)\b[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]\b`),
		replacement: "[CODICE_FISCALE]",
	},
	{
		flag:        PIICardNumber,
		pattern:     regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`),
		replacement: "[NUMERO_CARTA]",
	},
	{
		flag:        PIIEmail,
		pattern:     regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`),
		replacement: "[EMAIL]",
	},
}

// redactText masks PII spans and reports which categories were found.
func redactText(text string) (string, []string) {
	var flags []string
	for _, p := range piiPatterns {
		if !p.pattern.MatchString(text) {
			continue
		}
		text = p.pattern.ReplaceAllString(text, p.replacement)
		flags = append(flags, p.flag)
	}
	return text, flags
}

// redactMessages redacts all user-authored content in place and returns the
// distinct set of PII flags found across the conversation.
func redactMessages(msgs []chat.Message) []string {
	seen := map[string]bool{}
	var flags []string
	for i := range msgs {
		if msgs[i].Role != chat.RoleUser {
			continue
		}
		redacted, found := redactText(msgs[i].Content)
		msgs[i].Content = redacted
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}
	return flags
}

// piiSummary renders flags for logging.
func piiSummary(flags []string) string {
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ",")
}
