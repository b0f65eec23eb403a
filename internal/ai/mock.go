package ai

import (
	"context"
	"log/slog"

	"github.com/maelis/hostpilot/internal/store"
)

var mockReplies = []string{
	"Bien sûr, je peux vous aider avec ça ! Le code WiFi est affiché sur le routeur dans le salon.",
	"Le check-out est à 11h. N'oubliez pas de laisser les clés sur la table de la cuisine.",
	"Je suis désolé pour ce désagrément. Je vais envoyer quelqu'un pour régler ce problème dès que possible.",
	"Bienvenue ! Vous trouverez toutes les informations nécessaires dans le guide d'accueil sur la table basse.",
	"Il y a plusieurs excellents restaurants à proximité. Je vous recommande particulièrement le bistrot au coin de la rue.",
}

// mockGenerator serves canned replies when no API key is configured.
// Replies rotate with the conversation length so repeated exchanges do
// not echo the same line back.
type mockGenerator struct {
	log *slog.Logger
}

// NewMockGenerator creates the demo generator used when the real backend
// is not configured.
func NewMockGenerator(log *slog.Logger) Generator {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With("component", "ai_generator")
	logger.Warn("AI API key not configured, serving canned demo replies")
	return &mockGenerator{log: logger}
}

func (g *mockGenerator) GenerateReply(ctx context.Context, _ store.Message, property *store.Property, _ BookingContext, history []store.Message, _ Config) (string, error) {
	reply := mockReplies[len(history)%len(mockReplies)]
	g.log.DebugContext(ctx, "Serving canned demo reply",
		"property_id", property.ID, "history_count", len(history))
	return reply, nil
}
