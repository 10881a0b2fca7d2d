package services

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"budgetbuddy/internal/core"
)

// CategoryProfile is a reference category and the phrases that describe it.
type CategoryProfile struct {
	Name     string
	Keywords []string
}

// DefaultCategories is the reference set, in tie-break order.
var DefaultCategories = []CategoryProfile{
	{Name: "Transport", Keywords: []string{"taxi", "uber", "bus", "fuel", "cab", "commute"}},
	{Name: "Food", Keywords: []string{"restaurant", "groceries", "snacks", "food", "delivery"}},
	{Name: "Entertainment", Keywords: []string{"netflix", "movies", "music", "games", "shows"}},
	{Name: "Housing", Keywords: []string{"rent", "loan", "emi", "mortgage", "utilities"}},
}

// Scorer rates how well a description matches a category. Scores are
// compared against each other and against the classifier baseline only.
type Scorer interface {
	Score(description string, c CategoryProfile) float64
}

// CategoryClassifier picks a category for an expense.
type CategoryClassifier interface {
	Classify(supplied, description string) string
}

// Classifier trusts a supplied category and otherwise scores the
// description against every reference category. The highest score wins; on
// a tie the earlier category wins; when nothing beats the baseline the
// result is "Others".
type Classifier struct {
	categories []CategoryProfile
	scorer     Scorer
	baseline   float64
}

var _ CategoryClassifier = (*Classifier)(nil)

func NewClassifier(scorer Scorer, categories []CategoryProfile) *Classifier {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Classifier{categories: categories, scorer: scorer}
}

// NewClassifierByName builds the classifier for a configured scorer name:
// "keyword" or "fuzzy" (the default).
func NewClassifierByName(name string) *Classifier {
	if strings.EqualFold(strings.TrimSpace(name), "keyword") {
		return NewClassifier(KeywordScorer{}, nil)
	}
	return NewClassifier(NewFuzzyScorer(0), nil)
}

func (c *Classifier) Classify(supplied, description string) string {
	if s := strings.TrimSpace(supplied); s != "" {
		return s
	}
	best, bestScore := core.OthersCategory, c.baseline
	for _, cat := range c.categories {
		if score := c.scorer.Score(description, cat); score > bestScore {
			best, bestScore = cat.Name, score
		}
	}
	return best
}

// KeywordScorer counts case-insensitive keyword substring hits.
type KeywordScorer struct{}

func (KeywordScorer) Score(description string, c CategoryProfile) float64 {
	text := strings.ToLower(description)
	hits := 0
	for _, k := range c.Keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			hits++
		}
	}
	return float64(hits)
}

// FuzzyScorer returns the best edit-distance similarity between any word
// of the description and any keyword, so misspellings like "netflx" still
// match. Similarities below Threshold count as zero.
type FuzzyScorer struct {
	Threshold float64
}

const defaultFuzzyThreshold = 0.75

func NewFuzzyScorer(threshold float64) FuzzyScorer {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultFuzzyThreshold
	}
	return FuzzyScorer{Threshold: threshold}
}

func (f FuzzyScorer) Score(description string, c CategoryProfile) float64 {
	best := 0.0
	for _, word := range tokenize(description) {
		for _, k := range c.Keywords {
			if s := similarity(word, strings.ToLower(k)); s > best {
				best = s
			}
		}
	}
	if best < f.Threshold {
		return 0
	}
	return best
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(max(la, lb))
}
