package types

import "time"

// Category is the canonical status bucket an entity is placed in for one observation
type Category string

const (
	CategoryProhibited              Category = "prohibited"
	CategoryTask                    Category = "task"
	CategoryNonContact              Category = "non_contact"
	CategoryBreak                   Category = "break"
	CategoryMeal                    Category = "meal"
	CategoryMeeting                 Category = "meeting"
	CategoryTraining                Category = "training"
	CategoryPaidWork                Category = "paid_work"
	CategoryChat                    Category = "chat"
	CategoryCall                    Category = "call"
	CategoryQueueIdle               Category = "queue_idle"
	CategoryInteractionOutsideQueue Category = "interaction_outside_queue"
	CategoryAvailable               Category = "available"
	CategoryOther                   Category = "other"
)

// ProhibSubtype distinguishes the two prohibited status families
type ProhibSubtype string

const (
	SubtypeNone          ProhibSubtype = ""
	SubtypeNoAnswer      ProhibSubtype = "no_answer"       // ring-no-answer (RONA)
	SubtypeAfterCallWork ProhibSubtype = "after_call_work" // wrap-up / postcall
)

// Bucket names a per-day aggregate accumulator
type Bucket string

const (
	BucketCall          Bucket = "call"
	BucketChat          Bucket = "chat"
	BucketAfterCallWork Bucket = "afterCallWork"
	BucketNoAnswer      Bucket = "noAnswer"
)

// StatusClassOnCall is the presence class reported by the feeder when the dot says "on call"
const StatusClassOnCall = "On Call"

// Channels holds the per-channel activity indicators of one observation
type Channels struct {
	Voice     bool `json:"voice"`
	Chat      bool `json:"chat"`
	Email     bool `json:"email"`
	SMS       bool `json:"sms"`
	Task      bool `json:"task"`
	ChatCount int  `json:"chatCount"` // concurrency hint shown next to the chat icon
}

// Observation is one poll's raw reading of an entity's displayed state.
// Elapsed hints are optional; a nil pointer or empty text means "not shown".
type Observation struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	StatusClass   string   `json:"statusClass,omitempty"`
	Channels      Channels `json:"channels"`
	OnQueue       bool     `json:"onQueue"`
	ActivityCount int      `json:"activityCount"`

	StatusElapsedSec    *int     `json:"statusElapsedSec,omitempty"`
	StatusElapsedText   string   `json:"statusElapsedText,omitempty"`
	CallElapsedSec      *int     `json:"callElapsedSec,omitempty"`
	CallElapsedText     string   `json:"callElapsedText,omitempty"`
	TaskCallElapsedSec  *int     `json:"taskCallElapsedSec,omitempty"`
	TaskCallElapsedText string   `json:"taskCallElapsedText,omitempty"`
	ChatElapsedSec      []int    `json:"chatElapsedSec,omitempty"`
	ChatElapsedText     []string `json:"chatElapsedText,omitempty"`
}

// SnapshotBatch is what a feeder pushes on every poll
type SnapshotBatch struct {
	Observations []Observation `json:"observations"`
	Busy         bool          `json:"busy"` // host UI has a menu open or an edit in progress
	SentAt       time.Time     `json:"sentAt,omitempty"`
}

// HistoryEntry is one lifecycle event in the per-day history log
type HistoryEntry struct {
	Timestamp  time.Time     `json:"ts"`
	Type       string        `json:"type"` // status, prohib_on, prohib_off, call_end, chat_end
	To         Category      `json:"to,omitempty"`
	Subtype    ProhibSubtype `json:"sub,omitempty"`
	DurationMs int64         `json:"durMs,omitempty"`
}

// History entry types
const (
	HistoryStatus    = "status"
	HistoryProhibOn  = "prohib_on"
	HistoryProhibOff = "prohib_off"
	HistoryCallEnd   = "call_end"
	HistoryChatEnd   = "chat_end"
)

// DayTotals holds the accumulated milliseconds of one entity for one day
type DayTotals struct {
	CallMs          int64 `json:"callMs"`
	ChatMs          int64 `json:"chatMs"`
	AfterCallWorkMs int64 `json:"postcallMs"`
	NoAnswerMs      int64 `json:"ronaMs"`
}

// AlertKind identifies an alert family
type AlertKind string

const (
	AlertProhibited AlertKind = "prohibited"
	AlertLongCall   AlertKind = "long_call"
	AlertLongChat   AlertKind = "long_chat"
)
