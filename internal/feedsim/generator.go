// Package feedsim generates synthetic presence snapshots for load and demo
// runs. It plays the part of the browser-side feeder.
package feedsim

import (
	"fmt"
	"math/rand"
	"time"
)

// Activity is what a simulated agent is doing right now
type Activity string

const (
	ActivityOffline   Activity = "offline"
	ActivityIdle      Activity = "idle"
	ActivityCall      Activity = "call"
	ActivityChat      Activity = "chat"
	ActivityTask      Activity = "task"
	ActivityAfterCall Activity = "after_call"
	ActivityNoAnswer  Activity = "no_answer"
	ActivityBreak     Activity = "break"
	ActivityMeal      Activity = "meal"
	ActivityMeeting   Activity = "meeting"
	ActivityTraining  Activity = "training"
)

// Agent is one simulated contact-center agent
type Agent struct {
	Name     string
	Activity Activity
	Since    time.Time   // activity start, drives the status timer
	Until    time.Time   // scheduled end of the activity
	Chats    []time.Time // start of each open chat
}

var firstNames = []string{
	"Amélie", "Bastien", "Céline", "Damien", "Élodie", "François", "Gaëlle", "Hugo",
	"Inès", "Jérôme", "Karima", "Léa", "Mathis", "Noémie", "Océane", "Pierre",
	"Quentin", "Raphaël", "Sophie", "Théo", "Ulysse", "Valérie", "William", "Yasmine", "Zoé",
}

var lastNames = []string{
	"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand",
	"Leroy", "Moreau", "Simon", "Laurent", "Lefèvre", "Michel", "Garcia", "Roux",
}

// Generator creates agents with unique display names
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a new agent generator
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate creates count offline agents. Names repeat with a numeric suffix
// once the first/last combinations run out.
func (g *Generator) Generate(count int, now time.Time) []Agent {
	combos := len(firstNames) * len(lastNames)
	order := g.rng.Perm(combos)

	agents := make([]Agent, count)
	for i := 0; i < count; i++ {
		idx := order[i%combos]
		name := firstNames[idx%len(firstNames)] + " " + lastNames[idx/len(firstNames)]
		if round := i / combos; round > 0 {
			name = fmt.Sprintf("%s %d", name, round+1)
		}
		agents[i] = Agent{
			Name:     name,
			Activity: ActivityOffline,
			Since:    now,
			Until:    now,
		}
	}
	return agents
}
