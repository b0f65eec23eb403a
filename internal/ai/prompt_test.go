package ai_test

import (
	"strings"
	"testing"
	"time"

	"github.com/maelis/hostpilot/internal/ai"
	"github.com/maelis/hostpilot/internal/store"
)

func buildPrompt(t *testing.T, property *store.Property, booking ai.BookingContext, messages []store.Message, now time.Time) string {
	t.Helper()
	response := ai.BuildContext(property, booking, messages, now)
	return ai.NewPromptBuilder(nil).BuildSystemPrompt(response, ai.Config{Language: "fr", Tone: "friendly"})
}

func TestBuildSystemPrompt_IncludesInstructionContent(t *testing.T) {
	t.Parallel()

	property := testProperty()
	property.Instructions = []store.AIInstruction{
		{ID: "i1", Type: store.InstructionKnowledge, Content: "WiFi name is X, password is Y", IsActive: true, Priority: 1},
	}

	prompt := buildPrompt(t, property, ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "INFO: WiFi name is X, password is Y") {
		t.Errorf("prompt missing knowledge instruction, got:\n%s", prompt)
	}
}

func TestBuildSystemPrompt_InstructionOrderAndFiltering(t *testing.T) {
	t.Parallel()

	property := testProperty()
	property.Instructions = []store.AIInstruction{
		{ID: "i1", Type: store.InstructionRules, Content: "No parties", IsActive: true, Priority: 3},
		{ID: "i2", Type: store.InstructionTone, Content: "Warm and casual", IsActive: true, Priority: 1},
		{ID: "i3", Type: store.InstructionKnowledge, Content: "Checkout at 11am", IsActive: false, Priority: 2},
		{ID: "i4", Type: store.InstructionKnowledge, Content: "Parking in the back", IsActive: true, Priority: 2},
	}

	prompt := buildPrompt(t, property, ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if strings.Contains(prompt, "Checkout at 11am") {
		t.Error("inactive instruction should be excluded")
	}

	toneIdx := strings.Index(prompt, "TON: Warm and casual")
	infoIdx := strings.Index(prompt, "INFO: Parking in the back")
	ruleIdx := strings.Index(prompt, "RÈGLE: No parties")
	if toneIdx < 0 || infoIdx < 0 || ruleIdx < 0 {
		t.Fatalf("missing instruction lines, got:\n%s", prompt)
	}
	if !(toneIdx < infoIdx && infoIdx < ruleIdx) {
		t.Errorf("instructions out of priority order: tone=%d info=%d rule=%d", toneIdx, infoIdx, ruleIdx)
	}
}

func TestBuildSystemPrompt_UnknownInstructionTypeSkipped(t *testing.T) {
	t.Parallel()

	property := testProperty()
	property.Instructions = []store.AIInstruction{
		{ID: "i1", Type: "emergency", Content: "Call 112", IsActive: true, Priority: 1},
		{ID: "i2", Type: store.InstructionTone, Content: "Friendly", IsActive: true, Priority: 2},
	}

	prompt := buildPrompt(t, property, ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if strings.Contains(prompt, "Call 112") {
		t.Error("unknown instruction type should be skipped")
	}
	if !strings.Contains(prompt, "TON: Friendly") {
		t.Error("known instruction types should still render")
	}
}

func TestBuildSystemPrompt_NoInstructions(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(t, testProperty(), ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "Aucune instruction spécifique définie.") {
		t.Errorf("expected placeholder for empty instruction list, got:\n%s", prompt)
	}
}

func TestBuildSystemPrompt_NoBookingSentence(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(t, testProperty(), ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "CONTEXTE: Pas de réservation active.") {
		t.Errorf("expected explicit no-booking sentence, got:\n%s", prompt)
	}
	if strings.Contains(prompt, "CONTEXTE RÉSERVATION:") {
		t.Error("booking block should be absent without a booking")
	}
}

func TestBuildSystemPrompt_BookingBlock(t *testing.T) {
	t.Parallel()

	booking := ai.BookingContext{
		HasBooking:      true,
		CheckIn:         time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2026, 6, 25, 0, 0, 0, 0, time.UTC),
		GuestCount:      3,
		SpecialRequests: []string{"late arrival", "baby cot"},
	}

	prompt := buildPrompt(t, testProperty(), booking, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"CONTEXTE RÉSERVATION:",
		"- Check-in: 2026-06-20",
		"- Check-out: 2026-06-25",
		"- Nombre d'invités: 3",
		"- Demandes spéciales: late arrival, baby cot",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q, got:\n%s", want, prompt)
		}
	}
}

func TestBuildSystemPrompt_EmptyHistorySentence(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(t, testProperty(), ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "HISTORIQUE: Première interaction avec l'invité.") {
		t.Errorf("expected first-interaction sentence, got:\n%s", prompt)
	}
}

func TestBuildSystemPrompt_HistoryTranscript(t *testing.T) {
	t.Parallel()

	messages := []store.Message{
		{ID: "m1", Text: "Bonjour !", Sender: "Alice", Timestamp: time.Date(2026, 6, 15, 9, 15, 30, 0, time.UTC)},
		{ID: "m2", Text: "Bienvenue", Sender: "Host", Timestamp: time.Date(2026, 6, 15, 9, 20, 0, 0, time.UTC)},
	}

	prompt := buildPrompt(t, testProperty(), ai.BookingContext{}, messages, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "HISTORIQUE DE CONVERSATION:") {
		t.Fatalf("expected history block, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Alice (09:15:30): Bonjour !") {
		t.Errorf("history missing guest line, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Host (09:20:00): Bienvenue") {
		t.Errorf("history missing host line, got:\n%s", prompt)
	}
}

func TestBuildSystemPrompt_TimeLinesOnlyForTrueFlags(t *testing.T) {
	t.Parallel()

	// Midday, no booking: none of the time facts hold.
	prompt := buildPrompt(t, testProperty(), ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	for _, line := range []string{
		"Il est actuellement tard dans la nuit.",
		"C'est le jour du check-in.",
		"C'est le jour du check-out.",
		"Le check-in est dans",
	} {
		if strings.Contains(prompt, line) {
			t.Errorf("unexpected time line %q in prompt", line)
		}
	}

	// Night on the check-in day: both facts get a line.
	booking := ai.BookingContext{
		HasBooking: true,
		CheckIn:    time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
	}
	prompt = buildPrompt(t, testProperty(), booking, nil, time.Date(2026, 6, 15, 23, 0, 0, 0, time.UTC))

	if !strings.Contains(prompt, "CONTEXTE: Il est actuellement tard dans la nuit.") {
		t.Error("expected night line at 23:00")
	}
	if !strings.Contains(prompt, "CONTEXTE: C'est le jour du check-in.") {
		t.Error("expected check-in day line")
	}
}

func TestBuildSystemPrompt_Configuration(t *testing.T) {
	t.Parallel()

	response := ai.BuildContext(testProperty(), ai.BookingContext{}, nil, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))
	builder := ai.NewPromptBuilder(nil)

	prompt := builder.BuildSystemPrompt(response, ai.Config{Language: "en", Tone: "formal", IncludeEmoji: true})
	for _, want := range []string{"- Langue: en", "- Ton: formal", "- Style: Inclure des emojis appropriés"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	prompt = builder.BuildSystemPrompt(response, ai.Config{})
	for _, want := range []string{"- Langue: fr", "- Ton: friendly", "- Style: Sans emoji"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("defaulted prompt missing %q", want)
		}
	}
}

func TestBuildUserPrompt(t *testing.T) {
	t.Parallel()

	message := store.Message{Text: "Où est la clé ?"}
	got := ai.NewPromptBuilder(nil).BuildUserPrompt(message)
	want := `Message de l'invité: "Où est la clé ?"`

	if got != want {
		t.Errorf("BuildUserPrompt = %q, want %q", got, want)
	}
}
