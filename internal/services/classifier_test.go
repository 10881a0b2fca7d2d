package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"budgetbuddy/internal/core"
)

func TestClassifierTrustsSuppliedCategory(t *testing.T) {
	c := NewClassifier(KeywordScorer{}, nil)
	assert.Equal(t, "Gifts", c.Classify("  Gifts ", "uber to the airport"))
}

func TestClassifierScorers(t *testing.T) {
	tests := []struct {
		name        string
		scorer      Scorer
		description string
		want        string
	}{
		{"keyword transport", KeywordScorer{}, "Uber to office", "Transport"},
		{"keyword housing", KeywordScorer{}, "monthly RENT payment", "Housing"},
		{"keyword no match", KeywordScorer{}, "birthday present", core.OthersCategory},
		{"keyword empty", KeywordScorer{}, "", core.OthersCategory},
		{"fuzzy misspelling", NewFuzzyScorer(0), "netflx subscription", "Entertainment"},
		{"fuzzy exact", NewFuzzyScorer(0), "groceries at the market", "Food"},
		{"fuzzy below threshold", NewFuzzyScorer(0), "zzz", core.OthersCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.scorer, nil)
			assert.Equal(t, tt.want, c.Classify("", tt.description))
		})
	}
}

func TestClassifierTieGoesToFirstCategory(t *testing.T) {
	// Every category ties under a constant scorer.
	c := NewClassifier(constScorer(1), nil)
	assert.Equal(t, "Transport", c.Classify("", "anything"))

	cats := []CategoryProfile{{Name: "B", Keywords: []string{"x"}}, {Name: "A", Keywords: []string{"x"}}}
	c = NewClassifier(KeywordScorer{}, cats)
	assert.Equal(t, "B", c.Classify("", "x marks the spot"))
}

func TestClassifierHighestScoreWins(t *testing.T) {
	c := NewClassifier(KeywordScorer{}, nil)
	assert.Equal(t, "Food", c.Classify("", "food delivery by cab"))
}

func TestNewClassifierByName(t *testing.T) {
	assert.IsType(t, KeywordScorer{}, NewClassifierByName("keyword").scorer)
	assert.IsType(t, FuzzyScorer{}, NewClassifierByName("").scorer)
}

type constScorer float64

func (c constScorer) Score(string, CategoryProfile) float64 { return float64(c) }
