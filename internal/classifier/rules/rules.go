// Package rules implements the deterministic keyword/regex document
// classifier. Given identical extracted fields it always produces the same
// type and category, which is what lets the router re-derive a classification
// on message redelivery.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

//go:embed rules.yaml
var defaultRules []byte

type ruleFile struct {
	DefaultType  string              `yaml:"default_type"`
	MinimumScore float64             `yaml:"minimum_score"`
	Types        map[string]typeSpec `yaml:"types"`
}

type typeSpec struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

type typeRule struct {
	name     string
	category domain.Category
	keywords []string
	patterns []*regexp.Regexp
}

type Engine struct {
	rules       []typeRule
	defaultType string
	minScore    float64
}

const (
	keywordWeight = 1.0
	patternWeight = 2.0
)

// Load reads the rule file at path, or the embedded defaults when path is
// empty.
func Load(path string) (*Engine, error) {
	data := defaultRules
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		data = fileData
	}
	return parse(data)
}

func parse(data []byte) (*Engine, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if file.DefaultType == "" {
		return nil, fmt.Errorf("rules: default_type is required")
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("rules: no document types defined")
	}

	// Sorted by name so scoring order (and therefore tie behavior) is stable
	// across processes.
	names := make([]string, 0, len(file.Types))
	for name := range file.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	engine := &Engine{defaultType: file.DefaultType, minScore: file.MinimumScore}
	for _, name := range names {
		spec := file.Types[name]
		rule := typeRule{name: name, category: parseCategory(spec.Category)}
		for _, kw := range spec.Keywords {
			rule.keywords = append(rule.keywords, strings.ToLower(kw))
		}
		for _, pattern := range spec.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rules: type %s pattern %q: %w", name, pattern, err)
			}
			rule.patterns = append(rule.patterns, re)
		}
		engine.rules = append(engine.rules, rule)
	}
	return engine, nil
}

func parseCategory(s string) domain.Category {
	switch domain.Category(strings.ToLower(s)) {
	case domain.CategoryIdentity:
		return domain.CategoryIdentity
	case domain.CategoryContract:
		return domain.CategoryContract
	case domain.CategoryFinancial:
		return domain.CategoryFinancial
	default:
		return domain.CategoryDefault
	}
}

func (e *Engine) Classify(fields *domain.ExtractedFields) domain.Classification {
	text := strings.ToLower(fields.FullText)

	best := domain.Classification{
		DocumentType: e.defaultType,
		Category:     domain.CategoryDefault,
	}
	bestScore := 0.0

	for _, rule := range e.rules {
		score, trace := rule.score(text, fields.FullText)
		// Strictly greater: ties keep the earlier (alphabetical) match out and
		// fall through to the default when nothing dominates.
		if score > bestScore && score >= e.minScore {
			bestScore = score
			best = domain.Classification{
				DocumentType: rule.name,
				Category:     rule.category,
				Score:        score,
				RuleTrace:    trace,
			}
		}
	}
	return best
}

func (r typeRule) score(lowerText, rawText string) (float64, []string) {
	var score float64
	var trace []string
	for _, kw := range r.keywords {
		if strings.Contains(lowerText, kw) {
			score += keywordWeight
			trace = append(trace, "keyword:"+kw)
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(rawText) {
			score += patternWeight
			trace = append(trace, "pattern:"+re.String())
		}
	}
	return score, trace
}
