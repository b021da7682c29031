// Package security screens AI-proposed fixes before they are written to disk and executed.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kernhell/kernhell-go/assets"
	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Guardrail implements the FixGuard port.
type Guardrail struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// NewGuardrail loads rules from path, falling back to the built-in rules when the
// file is missing or lists no patterns.
func NewGuardrail(path string) (*Guardrail, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	var compiled []compiledPattern
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("guardrail rule %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{
			re:   re,
			rule: pattern,
		})
	}

	return &Guardrail{patterns: compiled}, nil
}

// Rules returns how many patterns are active.
func (g *Guardrail) Rules() int {
	return len(g.patterns)
}

// Evaluate implements ports.FixGuard. The most severe matching rule decides the action;
// every match contributes a reason.
func (g *Guardrail) Evaluate(code string) domain.RiskAssessment {
	assessment := domain.RiskAssessment{
		Level:  domain.RiskSafe,
		Action: domain.ActionAllow,
	}
	if g == nil {
		return assessment
	}
	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(code) {
			continue
		}
		ruleLevel := parseRiskLevel(pattern.rule.Level)
		if moreSevere(ruleLevel, assessment.Level) {
			assessment.Level = ruleLevel
		}
		if action := parseAction(pattern.rule.Action, ruleLevel); actionRank(action) > actionRank(assessment.Action) {
			assessment.Action = action
		}
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}
	return assessment
}

func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	data := assets.DefaultGuardrailYAML
	if path != "" {
		custom, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = custom
		case !errors.Is(err, fs.ErrNotExist):
			return RulesFile{}, err
		}
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse guardrail rules: %w", err)
	}
	if len(rules.Rules.DangerPatterns) == 0 {
		if err := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); err != nil {
			return RulesFile{}, fmt.Errorf("parse built-in guardrail rules: %w", err)
		}
	}
	return rules, nil
}

func parseRiskLevel(value string) domain.RiskLevel {
	switch strings.ToLower(value) {
	case "low":
		return domain.RiskLow
	case "medium":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "critical":
		return domain.RiskCritical
	default:
		return domain.RiskSafe
	}
}

// parseAction defaults unknown actions by level: critical rules block, anything else warns.
func parseAction(value string, fallback domain.RiskLevel) domain.GuardrailAction {
	switch strings.ToLower(value) {
	case "allow":
		return domain.ActionAllow
	case "warn":
		return domain.ActionWarn
	case "block":
		return domain.ActionBlock
	default:
		switch fallback {
		case domain.RiskSafe:
			return domain.ActionAllow
		case domain.RiskCritical:
			return domain.ActionBlock
		default:
			return domain.ActionWarn
		}
	}
}

func moreSevere(next domain.RiskLevel, current domain.RiskLevel) bool {
	order := map[domain.RiskLevel]int{
		domain.RiskSafe:     0,
		domain.RiskLow:      1,
		domain.RiskMedium:   2,
		domain.RiskHigh:     3,
		domain.RiskCritical: 4,
	}
	return order[next] > order[current]
}

func actionRank(a domain.GuardrailAction) int {
	switch a {
	case domain.ActionBlock:
		return 2
	case domain.ActionWarn:
		return 1
	default:
		return 0
	}
}

var _ ports.FixGuard = (*Guardrail)(nil)
