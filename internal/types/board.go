package types

import "time"

// Board is the render model handed to viewers after every processing pass
type Board struct {
	Type        string     `json:"type"` // always "board"
	Timestamp   time.Time  `json:"timestamp"`
	Sections    []Section  `json:"sections"`
	KPIs        KPIs       `json:"kpis"`
	Muted       bool       `json:"muted"`
	SnoozeUntil *time.Time `json:"snoozeUntil,omitempty"`
	Search      string     `json:"search,omitempty"`
	Error       string     `json:"error,omitempty"` // set when rendering failed; sections are empty
}

// Section groups the entities of one category (or the favorites group)
type Section struct {
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Entities []EntityCard `json:"entities"`
}

// EntityCard is one entity as shown inside a section
type EntityCard struct {
	Name           string        `json:"name"`
	Category       Category      `json:"category"`
	Subtype        ProhibSubtype `json:"subtype,omitempty"`
	Slot           int           `json:"slot"`
	Favorite       bool          `json:"favorite"`
	TotalCalls     int           `json:"totalCalls"`
	StatusStart    time.Time     `json:"statusStart"`
	StatusMs       int64         `json:"statusMs"`
	CallStart      *time.Time    `json:"callStart,omitempty"`
	CallMs         int64         `json:"callMs,omitempty"`
	Chats          []ChatTimer   `json:"chats,omitempty"`
	Alerts         []AlertKind   `json:"alerts,omitempty"`
	HistoryPreview string        `json:"historyPreview"`
}

// ChatTimer addresses one concurrent chat session by its index
type ChatTimer struct {
	Index int       `json:"index"`
	Start time.Time `json:"start"`
	Ms    int64     `json:"ms"`
}

// KPIs is the header summary of the board
type KPIs struct {
	Connected       int     `json:"connected"`
	OnQueue         int     `json:"onQueue"`
	LongestCall     Longest `json:"longestCall"`
	LongestChat     Longest `json:"longestChat"`
	ProhibitedCount int     `json:"prohibitedCount"`
	ActiveAlerts    int     `json:"activeAlerts"`
}

// Longest names the entity holding the longest running session of a kind
type Longest struct {
	Name string `json:"name"`
	Ms   int64  `json:"ms"`
}

// PresenceResult answers one name of a presence quick check
type PresenceResult struct {
	Query     string   `json:"query"`
	Name      string   `json:"name,omitempty"`
	Connected bool     `json:"connected"`
	Category  Category `json:"category,omitempty"`
	StatusMs  int64    `json:"statusMs,omitempty"`
}
