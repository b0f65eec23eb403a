// Package ai implements the reply pipeline: situational context building,
// prompt rendering, and the language-model backed response generator.
package ai

import (
	"errors"
	"time"

	"github.com/maelis/hostpilot/internal/store"
)

// ErrGeneration indicates the language-model backend failed or returned
// no content. No fallback text is fabricated; the caller decides whether
// to surface an error or simply not send a reply.
var ErrGeneration = errors.New("response generation failed")

// Config is the per-call reply style configuration. Unrecognized values
// pass through unvalidated to the prompt text.
type Config struct {
	Language          string
	Tone              string
	IncludeEmoji      bool
	MaxResponseLength int
}

// BookingContext captures the stay details relevant to a reply. Transient,
// derived from conversation fields per request; never persisted.
type BookingContext struct {
	HasBooking      bool
	CheckIn         time.Time
	CheckOut        time.Time
	GuestCount      int
	SpecialRequests []string
}

// TimeContext captures wall-clock facts at generation time. Computed fresh
// on every response generation, never cached.
type TimeContext struct {
	CurrentTime   time.Time
	IsNightTime   bool
	IsCheckInDay  bool
	IsCheckOutDay bool

	// Day-granularity distances; nil when there is no booking schedule.
	// Negative values are valid and signal a stay already in progress or
	// concluded.
	DaysUntilCheckIn  *int
	DaysUntilCheckOut *int
}

// ConversationContext references the full prior message list plus the
// timestamp of the most recent message (zero when there is no history).
type ConversationContext struct {
	PreviousMessages []store.Message
	LastInteraction  time.Time
}

// ResponseContext is the situational snapshot assembled before prompt
// rendering.
type ResponseContext struct {
	Property     *store.Property
	Booking      BookingContext
	Time         TimeContext
	Conversation ConversationContext
}
