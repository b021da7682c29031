package ai

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"
)

// SystemPrompt is shared by every backend.
const SystemPrompt = `You are an expert Playwright QA Automation Engineer.
Fix the broken Python test script below.

RULES:
1. Analyze the error & Screenshot (if available).
2. LOGICAL FIXES: If clicking a search button, ensure text is typed first! (e.g., page.fill(...)).
3. SELECTOR FIXES: Use robust selectors (text=, css=, xpath=).
4. OUTPUT: Return the FULL valid Python script. No markdown, no explanations.
5. REPLACEMENT RULE: Do NOT include the broken lines. Replace them completely with the fixed lines.`

const visionContext = `
ADDITIONAL CONTEXT: A screenshot of the page at the time of failure is attached.
Use the screenshot to identify the correct element selectors, text content,
and page layout. This visual context should help you fix selectors accurately.`

// verifyPrompt is the cheapest request that proves a credential works.
const verifyPrompt = "Say OK"

var userPromptTemplate = template.Must(template.New("user").Parse("BROKEN CODE:\n```python\n{{.Code}}\n```\n\nERROR LOG:\n{{.ErrorLog}}\n{{if .Vision}}" + visionContext + "\n{{end}}\nReturn the FULL fixed Python script. Output ONLY raw Python code."))

type promptData struct {
	Code     string
	ErrorLog string
	Vision   bool
}

// RenderUserPrompt builds the user message. The vision note is only added when
// an image actually accompanies the request.
func RenderUserPrompt(code, errorLog string, withImage bool) string {
	var buf bytes.Buffer
	data := promptData{Code: code, ErrorLog: errorLog, Vision: withImage}
	if err := userPromptTemplate.Execute(&buf, data); err != nil {
		// the template is static; a failure here means a bad writer, not bad input
		return "BROKEN CODE:\n" + code + "\n\nERROR LOG:\n" + errorLog
	}
	return buf.String()
}

var codeFence = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+-]*[ \\t]*\\r?\\n)?\\s*(.*?)```")

// ExtractCode returns the body of the first fenced block, or the trimmed text when
// the model answered without fences.
func ExtractCode(content string) string {
	if m := codeFence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}
