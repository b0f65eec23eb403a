package ai

import (
	"math"
	"time"

	"github.com/maelis/hostpilot/internal/store"
)

// Night hours bound the quiet period mentioned to the model: from
// nightStartHour (inclusive) until nightEndHour (exclusive) the next
// morning, in the clock's local time.
const (
	nightStartHour = 22
	nightEndHour   = 7
)

// BuildContext assembles the situational snapshot for one reply. It is a
// pure function of its inputs: now is injected by the caller, so the same
// arguments always produce the same snapshot.
func BuildContext(property *store.Property, booking BookingContext, messages []store.Message, now time.Time) ResponseContext {
	response := ResponseContext{
		Property: property,
		Booking:  booking,
		Time:     buildTimeContext(booking, now),
		Conversation: ConversationContext{
			PreviousMessages: messages,
		},
	}
	if len(messages) > 0 {
		response.Conversation.LastInteraction = messages[len(messages)-1].Timestamp
	}
	return response
}

// BookingFromConversation derives the booking context from a
// conversation's stay dates. A missing or malformed date yields a
// no-booking context rather than an error.
func BookingFromConversation(conversation *store.Conversation) BookingContext {
	if conversation == nil || conversation.CheckIn == "" || conversation.CheckOut == "" {
		return BookingContext{}
	}

	checkIn, err := time.Parse("2006-01-02", conversation.CheckIn)
	if err != nil {
		return BookingContext{}
	}
	checkOut, err := time.Parse("2006-01-02", conversation.CheckOut)
	if err != nil {
		return BookingContext{}
	}

	return BookingContext{
		HasBooking: true,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	}
}

func buildTimeContext(booking BookingContext, now time.Time) TimeContext {
	timeCtx := TimeContext{
		CurrentTime: now,
		IsNightTime: now.Hour() >= nightStartHour || now.Hour() < nightEndHour,
	}
	if !booking.HasBooking {
		return timeCtx
	}

	timeCtx.IsCheckInDay = sameDay(now, booking.CheckIn)
	timeCtx.IsCheckOutDay = sameDay(now, booking.CheckOut)

	daysIn := daysUntil(now, booking.CheckIn)
	daysOut := daysUntil(now, booking.CheckOut)
	timeCtx.DaysUntilCheckIn = &daysIn
	timeCtx.DaysUntilCheckOut = &daysOut
	return timeCtx
}

func sameDay(a, b time.Time) bool {
	aYear, aMonth, aDay := a.Date()
	bYear, bMonth, bDay := b.Date()
	return aYear == bYear && aMonth == bMonth && aDay == bDay
}

// daysUntil rounds up so a check-in later today or tomorrow morning still
// counts as at least the next day boundary. Past dates yield negative
// values.
func daysUntil(now, target time.Time) int {
	hours := target.Sub(now).Hours()
	return int(math.Ceil(hours / 24))
}
