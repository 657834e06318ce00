package classifier

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v2"
)

// Vocabulary holds the keyword families matched against status labels.
// Keywords are normalized before use, so accents and case do not matter.
type Vocabulary struct {
	NoAnswer      []string `yaml:"no_answer"`
	AfterCallWork []string `yaml:"after_call_work"`
	Task          []string `yaml:"task"`
	NonContact    []string `yaml:"non_contact"`
	Break         []string `yaml:"break"`
	Meal          []string `yaml:"meal"`
	Meeting       []string `yaml:"meeting"`
	Training      []string `yaml:"training"`
	PaidWork      []string `yaml:"paid_work"`
	Interaction   []string `yaml:"interaction"`
	Available     []string `yaml:"available"`
}

// DefaultVocabulary returns the French/English label families of the
// contact-center report.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		NoAnswer:      []string{"sans réponse", "rona", "no answer", "ring no answer", "not answered"},
		AfterCallWork: []string{"travail après appel", "postcall", "after call work", "acw", "wrap"},
		Task:          []string{"tâche", "tache associée", "work item", "workitem", "associated task"},
		NonContact:    []string{"non télé", "non-télé", "non telecontact", "non-telecontact", "non tele contact", "non telec"},
		Break:         []string{"pause", "break"},
		Meal:          []string{"repas", "meal"},
		Meeting:       []string{"réunion", "meeting"},
		Training:      []string{"formation", "training"},
		PaidWork:      []string{"travaux pay"},
		Interaction:   []string{"interaction"},
		Available:     []string{"available", "disponible"},
	}
}

// LoadVocabulary reads a YAML vocabulary file. Families present in the file
// replace the defaults; absent families keep them. An empty path returns the
// defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary %s: %w", path, err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return v, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	merge(&v.NoAnswer, override.NoAnswer)
	merge(&v.AfterCallWork, override.AfterCallWork)
	merge(&v.Task, override.Task)
	merge(&v.NonContact, override.NonContact)
	merge(&v.Break, override.Break)
	merge(&v.Meal, override.Meal)
	merge(&v.Meeting, override.Meeting)
	merge(&v.Training, override.Training)
	merge(&v.PaidWork, override.PaidWork)
	merge(&v.Interaction, override.Interaction)
	merge(&v.Available, override.Available)

	return v, nil
}

func merge(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

func (v Vocabulary) normalized() Vocabulary {
	return Vocabulary{
		NoAnswer:      normalizeAll(v.NoAnswer),
		AfterCallWork: normalizeAll(v.AfterCallWork),
		Task:          normalizeAll(v.Task),
		NonContact:    normalizeAll(v.NonContact),
		Break:         normalizeAll(v.Break),
		Meal:          normalizeAll(v.Meal),
		Meeting:       normalizeAll(v.Meeting),
		Training:      normalizeAll(v.Training),
		PaidWork:      normalizeAll(v.PaidWork),
		Interaction:   normalizeAll(v.Interaction),
		Available:     normalizeAll(v.Available),
	}
}
