package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Réunion", "reunion"},
		{"Tâche associée", "tache associee"},
		{"  Non   Télécontact ", "non telecontact"},
		{"Travail après appel", "travail apres appel"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	c := Default()

	tests := []struct {
		name        string
		obs         types.Observation
		wantCat     types.Category
		wantSubtype types.ProhibSubtype
	}{
		{
			name:        "rona label",
			obs:         types.Observation{Label: "Sans réponse"},
			wantCat:     types.CategoryProhibited,
			wantSubtype: types.SubtypeNoAnswer,
		},
		{
			name:        "after call work beats voice indicator",
			obs:         types.Observation{Label: "Travail après appel", Channels: types.Channels{Voice: true}},
			wantCat:     types.CategoryProhibited,
			wantSubtype: types.SubtypeAfterCallWork,
		},
		{
			name:        "wrap up english",
			obs:         types.Observation{Label: "Wrap-up"},
			wantCat:     types.CategoryProhibited,
			wantSubtype: types.SubtypeAfterCallWork,
		},
		{
			name:    "task label beats chat",
			obs:     types.Observation{Label: "Tâche associée", Channels: types.Channels{Chat: true}},
			wantCat: types.CategoryTask,
		},
		{
			name:    "task indicator",
			obs:     types.Observation{Label: "Disponible", Channels: types.Channels{Task: true}},
			wantCat: types.CategoryTask,
		},
		{
			name:    "non contact",
			obs:     types.Observation{Label: "Non télécontact"},
			wantCat: types.CategoryNonContact,
		},
		{
			name:    "break",
			obs:     types.Observation{Label: "Pause", OnQueue: true},
			wantCat: types.CategoryBreak,
		},
		{
			name:    "meal",
			obs:     types.Observation{Label: "Repas"},
			wantCat: types.CategoryMeal,
		},
		{
			name:    "meeting without accent",
			obs:     types.Observation{Label: "Reunion equipe"},
			wantCat: types.CategoryMeeting,
		},
		{
			name:    "training",
			obs:     types.Observation{Label: "Formation"},
			wantCat: types.CategoryTraining,
		},
		{
			name:    "paid work",
			obs:     types.Observation{Label: "Travaux payants"},
			wantCat: types.CategoryPaidWork,
		},
		{
			name:    "chat beats voice",
			obs:     types.Observation{Label: "En file d'attente", Channels: types.Channels{Chat: true, Voice: true}, OnQueue: true},
			wantCat: types.CategoryChat,
		},
		{
			name:    "email counts as digital",
			obs:     types.Observation{Label: "En file d'attente", Channels: types.Channels{Email: true}, OnQueue: true},
			wantCat: types.CategoryChat,
		},
		{
			name:    "voice indicator",
			obs:     types.Observation{Label: "En file d'attente", Channels: types.Channels{Voice: true}, OnQueue: true},
			wantCat: types.CategoryCall,
		},
		{
			name:    "on call status class",
			obs:     types.Observation{StatusClass: "On Call"},
			wantCat: types.CategoryCall,
		},
		{
			name:    "interaction keyword",
			obs:     types.Observation{Label: "En interaction", OnQueue: true, ActivityCount: 1},
			wantCat: types.CategoryCall,
		},
		{
			name:    "queue idle",
			obs:     types.Observation{Label: "En file d'attente", OnQueue: true},
			wantCat: types.CategoryQueueIdle,
		},
		{
			name:    "on queue with activity falls through",
			obs:     types.Observation{Label: "En file d'attente", OnQueue: true, ActivityCount: 2},
			wantCat: types.CategoryOther,
		},
		{
			name:    "interaction outside queue",
			obs:     types.Observation{Label: "Disponible", ActivityCount: 1},
			wantCat: types.CategoryInteractionOutsideQueue,
		},
		{
			name:    "available",
			obs:     types.Observation{Label: "Disponible"},
			wantCat: types.CategoryAvailable,
		},
		{
			name:    "available english",
			obs:     types.Observation{Label: "Available"},
			wantCat: types.CategoryAvailable,
		},
		{
			name:    "unknown label",
			obs:     types.Observation{Label: "Absent"},
			wantCat: types.CategoryOther,
		},
		{
			name:    "empty observation",
			obs:     types.Observation{},
			wantCat: types.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.obs)
			if got.Category != tt.wantCat {
				t.Errorf("Classify() category = %s, want %s", got.Category, tt.wantCat)
			}
			if got.Subtype != tt.wantSubtype {
				t.Errorf("Classify() subtype = %q, want %q", got.Subtype, tt.wantSubtype)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := Default()
	obs := types.Observation{Label: "Pause déjeuner", Channels: types.Channels{Chat: true}, OnQueue: true, ActivityCount: 3}

	first := c.Classify(obs)
	for i := 0; i < 50; i++ {
		if got := c.Classify(obs); got != first {
			t.Fatalf("iteration %d: Classify() = %+v, want %+v", i, got, first)
		}
	}
}

func TestRulesOrder(t *testing.T) {
	want := []types.Category{
		types.CategoryProhibited,
		types.CategoryTask,
		types.CategoryNonContact,
		types.CategoryBreak,
		types.CategoryMeal,
		types.CategoryMeeting,
		types.CategoryTraining,
		types.CategoryPaidWork,
		types.CategoryChat,
		types.CategoryCall,
		types.CategoryQueueIdle,
		types.CategoryInteractionOutsideQueue,
		types.CategoryAvailable,
	}

	rules := Default().Rules()
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, r := range rules {
		if r.Category != want[i] {
			t.Errorf("rule %d (%s) category = %s, want %s", i, r.Name, r.Category, want[i])
		}
	}
}

func TestProhibSubtype(t *testing.T) {
	c := Default()

	if got := c.ProhibSubtype("Ring No Answer"); got != types.SubtypeNoAnswer {
		t.Errorf("ProhibSubtype(rona) = %q", got)
	}
	if got := c.ProhibSubtype("ACW"); got != types.SubtypeAfterCallWork {
		t.Errorf("ProhibSubtype(acw) = %q", got)
	}
	if got := c.ProhibSubtype("Disponible"); got != types.SubtypeNone {
		t.Errorf("ProhibSubtype(available) = %q", got)
	}
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocabulary.yaml")
	content := "break:\n  - kaffeepause\nmeal:\n  - mittag\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write vocabulary: %v", err)
	}

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary() error = %v", err)
	}
	if len(v.Break) != 1 || v.Break[0] != "kaffeepause" {
		t.Errorf("Break = %v, want override", v.Break)
	}
	if len(v.Training) == 0 {
		t.Error("Training should keep defaults when absent from the file")
	}

	c := New(v)
	if got := c.Classify(types.Observation{Label: "Kaffeepause"}); got.Category != types.CategoryBreak {
		t.Errorf("override break = %s", got.Category)
	}
	if got := c.Classify(types.Observation{Label: "Pause"}); got.Category == types.CategoryBreak {
		t.Error("replaced keyword should no longer match")
	}
}

func TestLoadVocabularyErrors(t *testing.T) {
	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("break: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadVocabulary(path); err == nil {
		t.Error("expected error for malformed yaml")
	}

	v, err := LoadVocabulary("")
	if err != nil || len(v.NoAnswer) == 0 {
		t.Errorf("empty path should return defaults, got %v, %v", v, err)
	}
}
