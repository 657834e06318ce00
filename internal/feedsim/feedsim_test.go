package feedsim

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/cache"
	"github.com/dennisdiepolder/queuemonitor/internal/classifier"
	"github.com/dennisdiepolder/queuemonitor/internal/event"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/dennisdiepolder/queuemonitor/internal/websocket"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

type chanPublisher struct {
	batches chan types.SnapshotBatch
	err     error
}

func (p *chanPublisher) Publish(ctx context.Context, batch types.SnapshotBatch) error {
	if p.err != nil {
		return p.err
	}
	select {
	case p.batches <- batch:
	default:
	}
	return nil
}

func TestGenerateUniqueNames(t *testing.T) {
	agents := NewGenerator(1).Generate(500, t0)
	if len(agents) != 500 {
		t.Fatalf("expected 500 agents, got %d", len(agents))
	}

	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.Name] {
			t.Fatalf("duplicate name %q", a.Name)
		}
		seen[a.Name] = true
		if a.Activity != ActivityOffline {
			t.Errorf("%s should start offline", a.Name)
		}
	}
}

func TestRenderIsClassifiedAsIntended(t *testing.T) {
	cls := classifier.Default()

	tests := []struct {
		activity Activity
		want     types.Category
		subtype  types.ProhibSubtype
	}{
		{ActivityIdle, types.CategoryQueueIdle, types.SubtypeNone},
		{ActivityCall, types.CategoryCall, types.SubtypeNone},
		{ActivityChat, types.CategoryChat, types.SubtypeNone},
		{ActivityTask, types.CategoryTask, types.SubtypeNone},
		{ActivityAfterCall, types.CategoryProhibited, types.SubtypeAfterCallWork},
		{ActivityNoAnswer, types.CategoryProhibited, types.SubtypeNoAnswer},
		{ActivityBreak, types.CategoryBreak, types.SubtypeNone},
		{ActivityMeal, types.CategoryMeal, types.SubtypeNone},
		{ActivityMeeting, types.CategoryMeeting, types.SubtypeNone},
		{ActivityTraining, types.CategoryTraining, types.SubtypeNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.activity), func(t *testing.T) {
			a := Agent{Name: "alice", Activity: tt.activity, Since: t0, Chats: []time.Time{t0}}
			obs := render(a, t0.Add(90*time.Second))

			got := cls.Classify(obs)
			if got.Category != tt.want || got.Subtype != tt.subtype {
				t.Errorf("classified as %s/%s, want %s/%s", got.Category, got.Subtype, tt.want, tt.subtype)
			}
			if obs.StatusElapsedText != "00:01:30" {
				t.Errorf("StatusElapsedText = %q", obs.StatusElapsedText)
			}
		})
	}
}

func TestRenderChatSkipsFutureChats(t *testing.T) {
	a := Agent{
		Name:     "bob",
		Activity: ActivityChat,
		Since:    t0,
		Chats:    []time.Time{t0, t0.Add(time.Minute)},
	}

	obs := render(a, t0.Add(30*time.Second))
	if obs.Channels.ChatCount != 1 || len(obs.ChatElapsedText) != 1 {
		t.Fatalf("expected one visible chat, got %+v", obs.Channels)
	}

	obs = render(a, t0.Add(2*time.Minute))
	if obs.Channels.ChatCount != 2 {
		t.Fatalf("expected two chats, got %d", obs.Channels.ChatCount)
	}
	if obs.ChatElapsedText[0] != "00:02:00" || obs.ChatElapsedText[1] != "00:01:00" {
		t.Errorf("ChatElapsedText = %v", obs.ChatElapsedText)
	}
}

func TestSetActiveAndStep(t *testing.T) {
	agents := NewGenerator(7).Generate(10, t0)
	sim := NewSimulator(agents, &chanPublisher{}, time.Second, 0, 7, zerolog.Nop())

	sim.SetActive(4, t0)
	batch := sim.Snapshot(t0)
	if len(batch.Observations) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(batch.Observations))
	}
	if batch.Busy {
		t.Error("busy rate 0 should never flag a batch")
	}

	if n := sim.Step(t0); n != 0 {
		t.Errorf("fresh activities should not end immediately, %d changed", n)
	}
	// idle lasts at most 20s
	if n := sim.Step(t0.Add(25 * time.Second)); n != 4 {
		t.Errorf("expected every idle agent to move on, %d changed", n)
	}

	sim.SetActive(2, t0.Add(30*time.Second))
	if got := len(sim.Snapshot(t0.Add(30 * time.Second)).Observations); got != 2 {
		t.Errorf("expected 2 observations after scaling down, got %d", got)
	}

	sim.SetActive(99, t0)
	if stats := sim.Stats(); stats.ActiveAgents != 10 || stats.TotalAgents != 10 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunPublishesAndCountsFailures(t *testing.T) {
	pub := &chanPublisher{batches: make(chan types.SnapshotBatch, 1)}
	sim := NewSimulator(NewGenerator(3).Generate(3, t0), pub, 5*time.Millisecond, 0, 3, zerolog.Nop())
	sim.SetActive(3, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	select {
	case batch := <-pub.batches:
		if len(batch.Observations) != 3 {
			t.Errorf("expected 3 observations, got %d", len(batch.Observations))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch published")
	}
	cancel()
	<-done

	if sim.Stats().BatchesSent == 0 {
		t.Error("BatchesSent should count published batches")
	}

	failing := NewSimulator(nil, &chanPublisher{err: errors.New("down")}, 5*time.Millisecond, 0, 3, zerolog.Nop())
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	failing.Run(ctx)
	if failing.Stats().SendFailures == 0 {
		t.Error("SendFailures should count failed publishes")
	}
}

func TestHTTPPublisherFeedsReceiver(t *testing.T) {
	c := cache.NewSnapshotCache()
	receiver := event.NewReceiver(c, zerolog.New(&bytes.Buffer{}))
	srv := httptest.NewServer(http.HandlerFunc(receiver.HandleSnapshot))
	defer srv.Close()

	sim := NewSimulator(NewGenerator(5).Generate(6, t0), nil, time.Second, 0, 5, zerolog.Nop())
	sim.SetActive(6, t0)

	if err := NewHTTPPublisher(srv.URL).Publish(context.Background(), sim.Snapshot(t0)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c.Size() != 6 {
		t.Errorf("cache holds %d observations, want 6", c.Size())
	}
}

func TestHTTPPublisherReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "draining", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPPublisher(srv.URL).Publish(context.Background(), types.SnapshotBatch{})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected a 503 error, got %v", err)
	}
}

func TestWSPublisherFeedsFeederHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	c := cache.NewSnapshotCache()
	hub := websocket.NewFeederHub(c, logger)
	go hub.Run()

	srv := httptest.NewServer(websocket.NewFeederHandler(hub, logger))
	defer srv.Close()

	sim := NewSimulator(NewGenerator(9).Generate(5, t0), nil, time.Second, 0, 9, zerolog.Nop())
	sim.SetActive(5, t0)

	pub := NewWSPublisher(srv.URL, "sim-1", logger)
	defer pub.Close()

	if err := pub.Publish(context.Background(), sim.Snapshot(t0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.Acks() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.Acks() != 1 {
		t.Fatalf("expected 1 ack, got %d", pub.Acks())
	}
	if c.Size() != 5 {
		t.Errorf("cache holds %d observations, want 5", c.Size())
	}
}
