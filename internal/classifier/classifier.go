// Package classifier maps one observation to exactly one canonical category
// using an ordered rule list. The first matching rule wins.
package classifier

import (
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Result is the outcome of classifying one observation
type Result struct {
	Category types.Category
	Subtype  types.ProhibSubtype // only set for CategoryProhibited
}

// Rule is one entry of the precedence list
type Rule struct {
	Name     string
	Category types.Category
	Match    func(in *Input) bool
}

// Input is an observation plus its normalized label
type Input struct {
	Obs   types.Observation
	Label string
}

// Classifier evaluates its rules top to bottom
type Classifier struct {
	rules []Rule
	vocab Vocabulary
}

// New builds a classifier for the given vocabulary
func New(v Vocabulary) *Classifier {
	nv := v.normalized()
	return &Classifier{
		rules: buildRules(nv),
		vocab: nv,
	}
}

// Default builds a classifier with the built-in vocabulary
func Default() *Classifier {
	return New(DefaultVocabulary())
}

// Rules returns the precedence list in evaluation order
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the category of obs. It never fails: observations no rule
// claims resolve to CategoryOther.
func (c *Classifier) Classify(obs types.Observation) Result {
	in := &Input{Obs: obs, Label: Normalize(labelOf(obs))}

	for _, r := range c.rules {
		if r.Match(in) {
			res := Result{Category: r.Category}
			if r.Category == types.CategoryProhibited {
				res.Subtype = c.subtype(in.Label)
			}
			return res
		}
	}
	return Result{Category: types.CategoryOther}
}

// ProhibSubtype reports which prohibited family a raw label belongs to
func (c *Classifier) ProhibSubtype(label string) types.ProhibSubtype {
	return c.subtype(Normalize(label))
}

func (c *Classifier) subtype(normalized string) types.ProhibSubtype {
	switch {
	case containsAny(normalized, c.vocab.NoAnswer):
		return types.SubtypeNoAnswer
	case containsAny(normalized, c.vocab.AfterCallWork):
		return types.SubtypeAfterCallWork
	}
	return types.SubtypeNone
}

func labelOf(obs types.Observation) string {
	if obs.Label != "" {
		return obs.Label
	}
	return obs.StatusClass
}
