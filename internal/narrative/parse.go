package narrative

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/trifund/internal/contracts"
)

// Parse methods, recorded on the Narrative for audit
const (
	MethodJSON     = "json"
	MethodFenced   = "fenced"
	MethodEmbedded = "embedded"
	MethodRegex    = "regex"
	MethodKeyword  = "keyword"
)

var ErrEmptyResponse = errors.New("empty narrative response")

// response is the JSON shape requested from the model
type response struct {
	Catalysts []string `json:"catalysts" validate:"max=20,dive,max=500"`
	Threats   []string `json:"threats" validate:"max=20,dive,max=500"`
	AIImpact  string   `json:"ai_impact" validate:"omitempty,oneof=opportunity threat neutral"`
	Score     *float64 `json:"narrative_score" validate:"required,gte=0,lte=100"`
}

var validate = validator.New()

var (
	fencedRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	scoreRe    = regexp.MustCompile(`(?i)"?narrative_score"?\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
	impactRe   = regexp.MustCompile(`(?i)"?ai_impact"?\s*[:=]\s*"?(opportunity|threat|neutral)`)
	listItemRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

var (
	positiveRe = regexp.MustCompile(`(?i)\b(bullish|strong|growth|upside|buy|catalyst|positive|momentum|beat|surge)\b`)
	negativeRe = regexp.MustCompile(`(?i)\b(bearish|risk|threat|decline|sell|weak|miss|drop|concern|headwind)\b`)
)

// Parse extracts a Narrative from free model text. It tries, in order: the
// whole text as JSON, a fenced json block, the first embedded object,
// per-field regexes and finally a keyword count.
func Parse(text string) (*contracts.Narrative, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if n, ok := decode(text); ok {
		n.Method = MethodJSON
		return n, nil
	}

	if m := fencedRe.FindStringSubmatch(text); m != nil {
		if n, ok := decode(m[1]); ok {
			n.Method = MethodFenced
			return n, nil
		}
	}

	if obj := firstObject(text); obj != "" {
		if n, ok := decode(obj); ok {
			n.Method = MethodEmbedded
			return n, nil
		}
	}

	if n, ok := byRegex(text); ok {
		n.Method = MethodRegex
		return n, nil
	}

	n := byKeywords(text)
	n.Method = MethodKeyword
	return n, nil
}

func decode(s string) (*contracts.Narrative, bool) {
	var r response
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, false
	}
	if err := validate.Struct(r); err != nil {
		return nil, false
	}

	return &contracts.Narrative{
		Catalysts: nonNil(r.Catalysts),
		Threats:   nonNil(r.Threats),
		AIImpact:  impact(r.AIImpact),
		Score:     *r.Score,
	}, true
}

// firstObject returns the first balanced {...} span, ignoring braces in strings
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func byRegex(text string) (*contracts.Narrative, bool) {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}

	n := &contracts.Narrative{
		Catalysts: listField(text, "catalysts"),
		Threats:   listField(text, "threats"),
		AIImpact:  contracts.AIImpactNeutral,
		Score:     clampScore(score),
	}
	if im := impactRe.FindStringSubmatch(text); im != nil {
		n.AIImpact = impact(im[1])
	}
	return n, true
}

// listField pulls the quoted strings of "field": [ ... ] from broken JSON
func listField(text, field string) []string {
	re := regexp.MustCompile(`(?is)"?` + field + `"?\s*:\s*\[(.*?)\]`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return []string{}
	}

	items := []string{}
	for _, it := range listItemRe.FindAllStringSubmatch(m[1], -1) {
		if v := strings.TrimSpace(it[1]); v != "" {
			items = append(items, v)
		}
	}
	return items
}

// byKeywords scores whole-word sentiment hits as pos/(pos+neg)·100
func byKeywords(text string) *contracts.Narrative {
	pos := len(positiveRe.FindAllStringIndex(text, -1))
	neg := len(negativeRe.FindAllStringIndex(text, -1))

	score := neutralScore
	if total := pos + neg; total > 0 {
		score = math.Round(float64(pos) / float64(total) * 100)
	}

	return &contracts.Narrative{
		Catalysts: []string{},
		Threats:   []string{},
		AIImpact:  contracts.AIImpactNeutral,
		Score:     clampScore(score),
	}
}

func impact(s string) contracts.AIImpact {
	switch contracts.AIImpact(strings.ToLower(strings.TrimSpace(s))) {
	case contracts.AIImpactOpportunity:
		return contracts.AIImpactOpportunity
	case contracts.AIImpactThreat:
		return contracts.AIImpactThreat
	}
	return contracts.AIImpactNeutral
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
