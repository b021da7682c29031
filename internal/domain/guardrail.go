package domain

// RiskLevel classifies how dangerous a proposed fix looks.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// GuardrailAction is what happens to a fix that matched a rule.
type GuardrailAction string

const (
	ActionAllow GuardrailAction = "allow"
	ActionWarn  GuardrailAction = "warn"
	ActionBlock GuardrailAction = "block"
)

// RiskAssessment is the guardrail verdict for one proposed fix.
type RiskAssessment struct {
	Level        RiskLevel
	Action       GuardrailAction
	Reasons      []string
	MatchedRules []string
}

// Blocked reports whether the fix must not be applied.
func (r RiskAssessment) Blocked() bool {
	return r.Action == ActionBlock
}
