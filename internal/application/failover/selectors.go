package failover

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kernhell/kernhell-go/internal/domain"
)

const alternativesLimit = 5

var selectorKeywords = []string{"selector", "timeout", "locator", "waiting for"}

// selectorPatterns pull the failing selector out of Playwright error text, most specific first.
var selectorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`locator\("([^"]+)"\)`),
	regexp.MustCompile(`locator\('([^']+)'\)`),
	regexp.MustCompile(`(?i)waiting for (?:selector )?"([^"]+)"`),
	regexp.MustCompile(`(?i)selector ['"]([^'"]+)['"]`),
	regexp.MustCompile(`get_by_\w+\(["']([^"']+)["']`),
}

// ExtractSelector returns the selector named in an error message, or "".
func ExtractSelector(errText string) string {
	for _, re := range selectorPatterns {
		if m := re.FindStringSubmatch(errText); m != nil {
			return m[1]
		}
	}
	return ""
}

func mentionsSelector(errText string) bool {
	lower := strings.ToLower(errText)
	for _, kw := range selectorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// enrich appends alternative selectors to the error log when the failure looks selector related.
// Lookup problems only cost fix quality, so they are logged and ignored.
func (o *Orchestrator) enrich(ctx context.Context, req domain.FixRequest) string {
	errorLog := req.ErrorLog
	if o.Selectors == nil || !mentionsSelector(errorLog) {
		return errorLog
	}
	selector := ExtractSelector(errorLog)
	if selector == "" {
		return errorLog
	}
	matches, err := o.Selectors.Alternatives(ctx, req.File, selector, alternativesLimit)
	if err != nil {
		o.Logger.Warn("selector lookup failed", map[string]interface{}{"error": err.Error()})
		return errorLog
	}
	if len(matches) == 0 {
		return errorLog
	}

	var b strings.Builder
	b.WriteString(errorLog)
	fmt.Fprintf(&b, "\n\n=== ALTERNATIVE SELECTORS FOR %q ===\n", selector)
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s (similarity %.2f)\n", m.Selector, m.Score)
	}
	o.Logger.Debug("selector alternatives appended", map[string]interface{}{
		"selector": selector,
		"count":    len(matches),
	})
	return strings.TrimRight(b.String(), "\n")
}
