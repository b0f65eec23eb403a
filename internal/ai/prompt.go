package ai

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/maelis/hostpilot/internal/store"
)

// Guest-facing replies are produced for a French-speaking host base, so
// every prompt block carries French labels regardless of the configured
// reply language.
const directivesBlock = `DIRECTIVES:
1. Répondez de manière concise et précise
2. Adaptez le ton selon les instructions du logement
3. Utilisez le contexte temporel pour personnaliser la réponse
4. Évitez de répéter les informations déjà fournies
5. Restez professionnel et bienveillant`

// PromptBuilder renders a ResponseContext into the system and user prompts
// sent to the language model. Rendering is deterministic for a given
// snapshot.
type PromptBuilder struct {
	logger *slog.Logger
}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder(logger *slog.Logger) *PromptBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptBuilder{logger: logger.With("component", "prompt_builder")}
}

// BuildSystemPrompt renders the full system prompt: property block,
// time lines, booking block, conversation history, configuration, and the
// fixed directives, in that order.
func (b *PromptBuilder) BuildSystemPrompt(response ResponseContext, cfg Config) string {
	sections := []string{
		b.formatProperty(response.Property),
	}
	if timeLines := formatTimeLines(response.Time); timeLines != "" {
		sections = append(sections, timeLines)
	}
	sections = append(sections,
		formatBooking(response.Booking),
		formatHistory(response.Conversation.PreviousMessages),
		formatConfiguration(cfg),
		directivesBlock,
	)
	return strings.Join(sections, "\n\n")
}

// BuildUserPrompt wraps the guest message for the model.
func (b *PromptBuilder) BuildUserPrompt(message store.Message) string {
	return fmt.Sprintf("Message de l'invité: %q", message.Text)
}

func (b *PromptBuilder) formatProperty(property *store.Property) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "LOGEMENT %q:\n- Adresse: %s", property.Name, property.Address)
	if property.Description != "" {
		fmt.Fprintf(&sb, "\n- Description: %s", property.Description)
	}

	sb.WriteString("\n\nINSTRUCTIONS:\n")
	lines := b.formatInstructions(property.Instructions)
	if len(lines) == 0 {
		sb.WriteString("Aucune instruction spécifique définie.")
	} else {
		sb.WriteString(strings.Join(lines, "\n"))
	}
	return sb.String()
}

// formatInstructions keeps active instructions only, ordered by ascending
// priority. Equal priorities keep their stored order. Unknown instruction
// types are skipped with a warning rather than failing the whole prompt.
func (b *PromptBuilder) formatInstructions(instructions []store.AIInstruction) []string {
	active := make([]store.AIInstruction, 0, len(instructions))
	for _, instruction := range instructions {
		if instruction.IsActive {
			active = append(active, instruction)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	lines := make([]string, 0, len(active))
	for _, instruction := range active {
		switch instruction.Type {
		case store.InstructionTone:
			lines = append(lines, "TON: "+instruction.Content)
		case store.InstructionKnowledge:
			lines = append(lines, "INFO: "+instruction.Content)
		case store.InstructionRules:
			lines = append(lines, "RÈGLE: "+instruction.Content)
		default:
			b.logger.Warn("Skipping instruction with unknown type",
				"instruction_id", instruction.ID, "type", instruction.Type)
		}
	}
	return lines
}

// formatTimeLines emits one CONTEXTE line per time fact that is actually
// true; quiet periods get no filler line.
func formatTimeLines(timeCtx TimeContext) string {
	var lines []string
	if timeCtx.IsNightTime {
		lines = append(lines, "CONTEXTE: Il est actuellement tard dans la nuit.")
	}
	if timeCtx.IsCheckInDay {
		lines = append(lines, "CONTEXTE: C'est le jour du check-in.")
	}
	if timeCtx.IsCheckOutDay {
		lines = append(lines, "CONTEXTE: C'est le jour du check-out.")
	}
	if timeCtx.DaysUntilCheckIn != nil && *timeCtx.DaysUntilCheckIn > 0 {
		lines = append(lines, fmt.Sprintf("CONTEXTE: Le check-in est dans %d jours.", *timeCtx.DaysUntilCheckIn))
	}
	return strings.Join(lines, "\n")
}

func formatBooking(booking BookingContext) string {
	if !booking.HasBooking {
		return "CONTEXTE: Pas de réservation active."
	}

	guestCount := "Non spécifié"
	if booking.GuestCount > 0 {
		guestCount = fmt.Sprintf("%d", booking.GuestCount)
	}

	var sb strings.Builder
	sb.WriteString("CONTEXTE RÉSERVATION:\n")
	fmt.Fprintf(&sb, "- Check-in: %s\n", booking.CheckIn.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- Check-out: %s\n", booking.CheckOut.Format("2006-01-02"))
	fmt.Fprintf(&sb, "- Nombre d'invités: %s", guestCount)
	if len(booking.SpecialRequests) > 0 {
		fmt.Fprintf(&sb, "\n- Demandes spéciales: %s", strings.Join(booking.SpecialRequests, ", "))
	}
	return sb.String()
}

func formatHistory(messages []store.Message) string {
	if len(messages) == 0 {
		return "HISTORIQUE: Première interaction avec l'invité."
	}

	lines := make([]string, 0, len(messages)+1)
	lines = append(lines, "HISTORIQUE DE CONVERSATION:")
	for _, message := range messages {
		lines = append(lines, fmt.Sprintf("%s (%s): %s",
			message.Sender, message.Timestamp.Format("15:04:05"), message.Text))
	}
	return strings.Join(lines, "\n")
}

func formatConfiguration(cfg Config) string {
	language := cfg.Language
	if language == "" {
		language = "fr"
	}
	tone := cfg.Tone
	if tone == "" {
		tone = "friendly"
	}
	style := "Sans emoji"
	if cfg.IncludeEmoji {
		style = "Inclure des emojis appropriés"
	}
	return fmt.Sprintf("CONFIGURATION:\n- Langue: %s\n- Ton: %s\n- Style: %s", language, tone, style)
}
