// Package board turns the monitor state after a processing pass into the
// render model pushed to viewers.
package board

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// SectionFavorites is the key of the pinned favorites group
const SectionFavorites = "favorites"

// Sections lists every section in display order
var Sections = []struct {
	Key   string
	Label string
}{
	{SectionFavorites, "Favorites"},
	{string(types.CategoryProhibited), "Prohibited"},
	{string(types.CategoryAvailable), "Available"},
	{string(types.CategoryQueueIdle), "Waiting in queue"},
	{string(types.CategoryCall), "On call"},
	{string(types.CategoryChat), "Chat"},
	{string(types.CategoryTask), "Task"},
	{string(types.CategoryNonContact), "Non-contact"},
	{string(types.CategoryPaidWork), "Paid work"},
	{string(types.CategoryBreak), "Break"},
	{string(types.CategoryMeal), "Meal"},
	{string(types.CategoryMeeting), "Meeting"},
	{string(types.CategoryTraining), "Training"},
	{string(types.CategoryInteractionOutsideQueue), "Interaction outside queue"},
	{string(types.CategoryOther), "Other"},
}

// Row is what the processing pass learned about one entity
type Row struct {
	Name     string
	Category types.Category
	Subtype  types.ProhibSubtype
	OnQueue  bool
	Alerts   []types.AlertKind
}

// Builder reads the state; it must run on the processing loop
type Builder struct {
	state *state.State
	now   func() time.Time
}

func NewBuilder(st *state.State, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{state: st, now: now}
}

// Build assembles the board for rows
func (b *Builder) Build(rows []Row) types.Board {
	now := b.now()
	st := b.state

	board := types.Board{
		Type:      "board",
		Timestamp: now,
		Muted:     st.Alerts.Muted(),
		Search:    st.Prefs.Search,
	}
	if until := st.Alerts.SnoozeUntil(); until.After(now) {
		board.SnoozeUntil = &until
	}

	groups := make(map[string][]types.EntityCard, len(Sections))
	for _, row := range rows {
		card := b.card(row, now)
		groups[string(row.Category)] = append(groups[string(row.Category)], card)
		if card.Favorite {
			groups[SectionFavorites] = append(groups[SectionFavorites], card)
		}

		board.KPIs.Connected++
		if row.OnQueue {
			board.KPIs.OnQueue++
		}
		if row.Category == types.CategoryProhibited {
			board.KPIs.ProhibitedCount++
		}
		board.KPIs.ActiveAlerts += len(row.Alerts)
		if card.CallStart != nil && card.CallMs > board.KPIs.LongestCall.Ms {
			board.KPIs.LongestCall = types.Longest{Name: card.Name, Ms: card.CallMs}
		}
		if len(card.Chats) > 0 && card.Chats[0].Index == 0 && card.Chats[0].Ms > board.KPIs.LongestChat.Ms {
			board.KPIs.LongestChat = types.Longest{Name: card.Name, Ms: card.Chats[0].Ms}
		}
	}

	board.Sections = make([]types.Section, 0, len(Sections))
	for _, s := range Sections {
		cards := groups[s.Key]
		if s.Key == string(types.CategoryCall) {
			sortCards(cards, st.Prefs.SortCalls, func(c types.EntityCard) int64 { return c.CallMs })
		} else {
			sortCards(cards, st.Prefs.SortStatus, func(c types.EntityCard) int64 { return c.StatusMs })
		}
		if cards == nil {
			cards = []types.EntityCard{}
		}
		board.Sections = append(board.Sections, types.Section{Key: s.Key, Label: s.Label, Entities: cards})
	}

	return board
}

func (b *Builder) card(row Row, now time.Time) types.EntityCard {
	st := b.state
	card := types.EntityCard{
		Name:           row.Name,
		Category:       row.Category,
		Subtype:        row.Subtype,
		Favorite:       st.Favorites[row.Name],
		Alerts:         row.Alerts,
		HistoryPreview: st.Aggregates.Preview(row.Name),
	}

	if entry, ok := st.Slots.Get(row.Name); ok {
		card.Slot = entry.Slot
		card.TotalCalls = entry.TotalCalls
	}

	sess, ok := st.Sessions.Get(row.Name)
	if !ok {
		return card
	}
	card.StatusStart = sess.Status.Start
	card.StatusMs = elapsedMs(sess.Status.Start, now)
	if sess.Call.Active {
		start := sess.Call.Start
		card.CallStart = &start
		card.CallMs = elapsedMs(start, now)
	}
	for i, chat := range sess.Chats {
		if chat.Active {
			card.Chats = append(card.Chats, types.ChatTimer{Index: i, Start: chat.Start, Ms: elapsedMs(chat.Start, now)})
		}
	}
	return card
}

// sortCards orders by slot, or by key when order is set (slot breaks ties)
func sortCards(cards []types.EntityCard, order state.SortOrder, key func(types.EntityCard) int64) {
	sort.SliceStable(cards, func(i, j int) bool {
		if order != state.SortNone {
			ki, kj := key(cards[i]), key(cards[j])
			if ki != kj {
				if order == state.SortAsc {
					return ki < kj
				}
				return ki > kj
			}
		}
		return cards[i].Slot < cards[j].Slot
	})
}

// ErrorBoard is the visible error surface shown when rendering failed
func ErrorBoard(now time.Time, err error) types.Board {
	return types.Board{
		Type:      "board",
		Timestamp: now,
		Sections:  []types.Section{},
		Error:     err.Error(),
	}
}

func elapsedMs(start, now time.Time) int64 {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return now.Sub(start).Milliseconds()
}
