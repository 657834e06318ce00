package feedsim

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Publisher delivers one snapshot batch to the monitor
type Publisher interface {
	Publish(ctx context.Context, batch types.SnapshotBatch) error
}

// Stats summarizes a simulator run
type Stats struct {
	TotalAgents  int   `json:"totalAgents"`
	ActiveAgents int   `json:"activeAgents"`
	BatchesSent  int64 `json:"batchesSent"`
	SendFailures int64 `json:"sendFailures"`
}

// Simulator advances agent activities and renders them as snapshots
type Simulator struct {
	mu        sync.Mutex
	agents    []Agent
	active    int
	rng       *rand.Rand
	publisher Publisher
	interval  time.Duration
	busyRate  float64

	sent   int64
	failed int64

	logger zerolog.Logger
}

// NewSimulator creates a simulator; busyRate is the fraction of batches
// flagged as taken while the host UI is busy.
func NewSimulator(agents []Agent, pub Publisher, interval time.Duration, busyRate float64, seed int64, logger zerolog.Logger) *Simulator {
	return &Simulator{
		agents:    agents,
		rng:       rand.New(rand.NewSource(seed)),
		publisher: pub,
		interval:  interval,
		busyRate:  busyRate,
		logger:    logger.With().Str("component", "simulator").Logger(),
	}
}

// SetActive connects the first n agents and disconnects the rest
func (s *Simulator) SetActive(n int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > len(s.agents) {
		n = len(s.agents)
	}
	s.active = n

	for i := range s.agents {
		a := &s.agents[i]
		switch {
		case i < n && a.Activity == ActivityOffline:
			s.enter(a, ActivityIdle, now)
		case i >= n && a.Activity != ActivityOffline:
			a.Activity = ActivityOffline
			a.Chats = nil
			a.Since = now
		}
	}
}

// Step moves every active agent whose activity ended to its next one and
// returns how many changed.
func (s *Simulator) Step(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := 0; i < s.active; i++ {
		a := &s.agents[i]
		if now.Before(a.Until) {
			continue
		}
		s.enter(a, s.nextActivity(a.Activity), now)
		changed++
	}
	return changed
}

// Snapshot renders the connected agents the way the host report shows them
func (s *Simulator) Snapshot(now time.Time) types.SnapshotBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := types.SnapshotBatch{
		Observations: make([]types.Observation, 0, s.active),
		Busy:         s.busyRate > 0 && s.rng.Float64() < s.busyRate,
		SentAt:       now,
	}
	for i := 0; i < s.active; i++ {
		batch.Observations = append(batch.Observations, render(s.agents[i], now))
	}
	return batch
}

// Run publishes a snapshot every interval until ctx is cancelled
func (s *Simulator) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.logger.Info().Dur("interval", s.interval).Int("active", s.Stats().ActiveAgents).Msg("simulation started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("simulation stopped")
			return
		case now := <-t.C:
			s.Step(now)
			batch := s.Snapshot(now)
			if err := s.publisher.Publish(ctx, batch); err != nil {
				atomic.AddInt64(&s.failed, 1)
				s.logger.Debug().Err(err).Msg("failed to publish snapshot")
				continue
			}
			atomic.AddInt64(&s.sent, 1)
		}
	}
}

// Stats returns the current counters
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	total, active := len(s.agents), s.active
	s.mu.Unlock()

	return Stats{
		TotalAgents:  total,
		ActiveAgents: active,
		BatchesSent:  atomic.LoadInt64(&s.sent),
		SendFailures: atomic.LoadInt64(&s.failed),
	}
}

func (s *Simulator) enter(a *Agent, next Activity, now time.Time) {
	a.Activity = next
	a.Since = now
	a.Until = now.Add(s.dwell(next))
	a.Chats = nil
	if next == ActivityChat {
		a.Chats = append(a.Chats, now)
		if s.rng.Float64() < 0.4 {
			// second chat opened a little later
			a.Chats = append(a.Chats, now.Add(time.Duration(5+s.rng.Intn(30))*time.Second))
		}
	}
}

// dwell returns how long an agent stays in an activity
func (s *Simulator) dwell(a Activity) time.Duration {
	between := func(lo, hi int) time.Duration {
		return time.Duration(lo+s.rng.Intn(hi-lo)) * time.Second
	}

	switch a {
	case ActivityIdle:
		return between(5, 20)
	case ActivityCall:
		return between(30, 240) // 30s-4min
	case ActivityChat:
		return between(60, 300)
	case ActivityTask:
		return between(20, 120)
	case ActivityAfterCall:
		return between(10, 40)
	case ActivityNoAnswer:
		return between(5, 20)
	case ActivityBreak:
		return between(300, 600) // 5-10min
	case ActivityMeal:
		return between(1800, 3600) // 30-60min
	case ActivityMeeting:
		return between(600, 2400)
	case ActivityTraining:
		return between(1800, 5400)
	default:
		return between(5, 15)
	}
}

// nextActivity picks the follow-up activity
func (s *Simulator) nextActivity(current Activity) Activity {
	roll := s.rng.Float64()

	switch current {
	case ActivityIdle:
		switch {
		case roll < 0.50:
			return ActivityCall
		case roll < 0.68:
			return ActivityChat
		case roll < 0.74:
			return ActivityTask
		case roll < 0.78:
			return ActivityNoAnswer
		case roll < 0.88:
			return ActivityBreak
		case roll < 0.93:
			return ActivityMeeting
		case roll < 0.96:
			return ActivityTraining
		}
		return ActivityMeal

	case ActivityCall:
		if roll < 0.80 {
			return ActivityAfterCall
		}
		return ActivityIdle

	case ActivityAfterCall:
		if roll < 0.85 {
			return ActivityIdle
		} else if roll < 0.95 {
			return ActivityBreak
		}
		return ActivityMeal

	default:
		return ActivityIdle
	}
}

// render produces the observation the host report would show for a
func render(a Agent, now time.Time) types.Observation {
	obs := types.Observation{
		Name:              a.Name,
		StatusElapsedText: duration.FormatHMS(now.Sub(a.Since).Milliseconds()),
	}

	switch a.Activity {
	case ActivityIdle:
		obs.Label = "Disponible"
		obs.OnQueue = true
	case ActivityCall:
		obs.Label = "En communication"
		obs.StatusClass = types.StatusClassOnCall
		obs.Channels.Voice = true
		obs.OnQueue = true
		obs.ActivityCount = 1
		obs.CallElapsedText = obs.StatusElapsedText
	case ActivityChat:
		obs.Label = "Disponible"
		obs.Channels.Chat = true
		obs.OnQueue = true
		for _, start := range a.Chats {
			if now.Before(start) {
				continue
			}
			obs.ChatElapsedText = append(obs.ChatElapsedText, duration.FormatHMS(now.Sub(start).Milliseconds()))
		}
		obs.Channels.ChatCount = len(obs.ChatElapsedText)
		obs.ActivityCount = obs.Channels.ChatCount
	case ActivityTask:
		obs.Label = "Tâche associée"
		obs.Channels.Task = true
		obs.ActivityCount = 1
		obs.TaskCallElapsedText = obs.StatusElapsedText
	case ActivityAfterCall:
		obs.Label = "Travail après appel"
		obs.OnQueue = true
	case ActivityNoAnswer:
		obs.Label = "Sans réponse"
		obs.OnQueue = true
	case ActivityBreak:
		obs.Label = "Pause"
	case ActivityMeal:
		obs.Label = "Repas"
	case ActivityMeeting:
		obs.Label = "Réunion"
	case ActivityTraining:
		obs.Label = "Formation"
	}
	return obs
}
