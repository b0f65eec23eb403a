package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// maxAppendRetries bounds the revision check-and-retry loop on log appends.
const maxAppendRetries = 3

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// conversationRow mirrors the conversations table, with the serialized
// message log in RawMessages.
type conversationRow struct {
	ID          string    `db:"id"`
	PropertyID  string    `db:"property_id"`
	GuestName   string    `db:"guest_name"`
	GuestEmail  string    `db:"guest_email"`
	Platform    string    `db:"platform"`
	Status      string    `db:"status"`
	CheckIn     string    `db:"check_in"`
	CheckOut    string    `db:"check_out"`
	AutoPilot   bool      `db:"auto_pilot"`
	Revision    int64     `db:"revision"`
	RawMessages string    `db:"messages"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *conversationRow) toConversation(logger *slog.Logger) *Conversation {
	return &Conversation{
		ID:         r.ID,
		PropertyID: r.PropertyID,
		GuestName:  r.GuestName,
		GuestEmail: r.GuestEmail,
		Platform:   r.Platform,
		Status:     r.Status,
		CheckIn:    r.CheckIn,
		CheckOut:   r.CheckOut,
		AutoPilot:  r.AutoPilot,
		Revision:   r.Revision,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Messages:   ParseMessageLog(r.RawMessages, logger),
	}
}

const conversationColumns = `id, property_id, guest_name, guest_email, platform, status,
        check_in, check_out, auto_pilot, revision, messages, created_at, updated_at`

// GetConversation retrieves a conversation with its full message log.
func (s *sqlxStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation id cannot be empty")
	}

	var row conversationRow
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	err := s.db.GetContext(ctx, &row, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting conversation", "conversation_id", id, "error", err)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	return row.toConversation(s.logger), nil
}

// ListConversationsByProperty retrieves all conversations for a property,
// most recently updated first.
func (s *sqlxStore) ListConversationsByProperty(ctx context.Context, propertyID string) ([]*Conversation, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("property id cannot be empty")
	}

	var rows []conversationRow
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE property_id = ? ORDER BY updated_at DESC`

	if err := s.db.SelectContext(ctx, &rows, query, propertyID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing conversations", "property_id", propertyID, "error", err)
		return nil, fmt.Errorf("failed to list conversations for property %s: %w", propertyID, err)
	}

	conversations := make([]*Conversation, 0, len(rows))
	for i := range rows {
		conversations = append(conversations, rows[i].toConversation(s.logger))
	}

	s.logger.DebugContext(ctx, "Listed conversations", "property_id", propertyID, "count", len(conversations))
	return conversations, nil
}

// FindConversationByGuest retrieves the conversation keyed by
// (propertyID, guestEmail). Returns nil, nil when none exists.
func (s *sqlxStore) FindConversationByGuest(ctx context.Context, propertyID, guestEmail string) (*Conversation, error) {
	if propertyID == "" || guestEmail == "" {
		return nil, fmt.Errorf("property id and guest email cannot be empty")
	}

	var row conversationRow
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE property_id = ? AND guest_email = ? LIMIT 1`

	err := s.db.GetContext(ctx, &row, query, propertyID, guestEmail)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No conversation found for guest", "property_id", propertyID, "guest_email", guestEmail)
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error finding conversation by guest", "property_id", propertyID, "error", err)
		return nil, fmt.Errorf("failed to find conversation for property %s: %w", propertyID, err)
	}

	return row.toConversation(s.logger), nil
}

// CreateConversation inserts a new conversation record.
func (s *sqlxStore) CreateConversation(ctx context.Context, conversation *Conversation) error {
	if conversation == nil {
		return fmt.Errorf("cannot create nil conversation")
	}
	if conversation.ID == "" {
		return fmt.Errorf("conversation must have a non-empty id")
	}
	if conversation.PropertyID == "" {
		return fmt.Errorf("conversation must have a non-empty property_id")
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	if conversation.Status == "" {
		conversation.Status = StatusActive
	}
	if conversation.Platform == "" {
		conversation.Platform = "whatsapp"
	}

	rawMessages, err := EncodeMessageLog(conversation.Messages)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO conversations (id, property_id, guest_name, guest_email, platform, status,
            check_in, check_out, auto_pilot, revision, messages, created_at, updated_at)
        VALUES (:id, :property_id, :guest_name, :guest_email, :platform, :status,
            :check_in, :check_out, :auto_pilot, :revision, :messages, :created_at, :updated_at);
    `

	row := conversationRow{
		ID:          conversation.ID,
		PropertyID:  conversation.PropertyID,
		GuestName:   conversation.GuestName,
		GuestEmail:  conversation.GuestEmail,
		Platform:    conversation.Platform,
		Status:      conversation.Status,
		CheckIn:     conversation.CheckIn,
		CheckOut:    conversation.CheckOut,
		AutoPilot:   conversation.AutoPilot,
		Revision:    conversation.Revision,
		RawMessages: rawMessages,
		CreatedAt:   conversation.CreatedAt,
		UpdatedAt:   conversation.UpdatedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, &row); err != nil {
		s.logger.ErrorContext(ctx, "Error creating conversation",
			"conversation_id", conversation.ID, "property_id", conversation.PropertyID, "error", err)
		return fmt.Errorf("failed to create conversation %s: %w", conversation.ID, err)
	}

	s.logger.InfoContext(ctx, "Conversation created",
		"conversation_id", conversation.ID, "property_id", conversation.PropertyID)
	return nil
}

// AppendMessage appends one message to a conversation's log. The whole log
// is rewritten; the revision column guards against a concurrent writer
// having rewritten it since our read. On a lost race the append re-reads
// and retries up to maxAppendRetries times, then fails with ErrConflict
// rather than silently dropping the other writer's messages.
func (s *sqlxStore) AppendMessage(ctx context.Context, conversationID string, message Message) (*Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id cannot be empty")
	}
	if message.Text == "" {
		return nil, fmt.Errorf("message must have non-empty text")
	}

	for attempt := 1; attempt <= maxAppendRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		conversation, err := s.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}

		updatedLog := append(conversation.Messages, message)
		rawMessages, err := EncodeMessageLog(updatedLog)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		result, err := s.db.ExecContext(ctx, `
            UPDATE conversations
            SET messages = ?, revision = revision + 1, updated_at = ?
            WHERE id = ? AND revision = ?;
        `, rawMessages, now, conversationID, conversation.Revision)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error appending message", "conversation_id", conversationID, "error", err)
			return nil, fmt.Errorf("failed to append message to conversation %s: %w", conversationID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check append result for conversation %s: %w", conversationID, err)
		}
		if affected == 1 {
			conversation.Messages = updatedLog
			conversation.Revision++
			conversation.UpdatedAt = now
			s.logger.DebugContext(ctx, "Message appended",
				"conversation_id", conversationID, "message_id", message.ID,
				"log_length", len(updatedLog), "attempts", attempt)
			return conversation, nil
		}

		s.logger.WarnContext(ctx, "Append lost revision race, retrying",
			"conversation_id", conversationID, "revision", conversation.Revision, "attempt", attempt)
	}

	s.logger.ErrorContext(ctx, "Append exhausted retries", "conversation_id", conversationID, "max_retries", maxAppendRetries)
	return nil, fmt.Errorf("failed to append message to conversation %s after %d attempts: %w",
		conversationID, maxAppendRetries, ErrConflict)
}

// SetAutoPilot toggles the persisted auto-pilot flag on a conversation.
func (s *sqlxStore) SetAutoPilot(ctx context.Context, conversationID string, enabled bool) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET auto_pilot = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), conversationID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting auto-pilot flag", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("failed to set auto-pilot on conversation %s: %w", conversationID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Auto-pilot flag updated", "conversation_id", conversationID, "enabled", enabled)
	return nil
}

// GetProperty retrieves a property with its instructions.
func (s *sqlxStore) GetProperty(ctx context.Context, id string) (*Property, error) {
	if id == "" {
		return nil, fmt.Errorf("property id cannot be empty")
	}

	var property Property
	query := `SELECT id, name, address, description, created_at, updated_at FROM properties WHERE id = ?`

	err := s.db.GetContext(ctx, &property, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting property", "property_id", id, "error", err)
		return nil, fmt.Errorf("failed to get property %s: %w", id, err)
	}

	instructions, err := s.listInstructions(ctx, id)
	if err != nil {
		return nil, err
	}
	property.Instructions = instructions

	return &property, nil
}

// ListProperties retrieves all properties with their instructions.
func (s *sqlxStore) ListProperties(ctx context.Context) ([]*Property, error) {
	var properties []*Property
	query := `SELECT id, name, address, description, created_at, updated_at FROM properties ORDER BY name ASC`

	if err := s.db.SelectContext(ctx, &properties, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing properties", "error", err)
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	for _, property := range properties {
		instructions, err := s.listInstructions(ctx, property.ID)
		if err != nil {
			return nil, err
		}
		property.Instructions = instructions
	}

	return properties, nil
}

func (s *sqlxStore) listInstructions(ctx context.Context, propertyID string) ([]AIInstruction, error) {
	var instructions []AIInstruction
	query := `SELECT id, property_id, type, content, is_active, priority, created_at, updated_at
        FROM ai_instructions WHERE property_id = ? ORDER BY priority ASC, id ASC`

	if err := s.db.SelectContext(ctx, &instructions, query, propertyID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing instructions", "property_id", propertyID, "error", err)
		return nil, fmt.Errorf("failed to list instructions for property %s: %w", propertyID, err)
	}
	return instructions, nil
}

// SaveProperty inserts or updates a property record.
func (s *sqlxStore) SaveProperty(ctx context.Context, property *Property) error {
	if property == nil {
		return fmt.Errorf("cannot save nil property")
	}
	if property.ID == "" {
		return fmt.Errorf("property must have a non-empty id")
	}

	now := time.Now().UTC()
	property.UpdatedAt = now
	if property.CreatedAt.IsZero() {
		property.CreatedAt = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM properties WHERE id = ? LIMIT 1`, property.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check if property %s exists: %w", property.ID, err)
	}

	if exists {
		_, err = tx.NamedExecContext(ctx, `
            UPDATE properties SET name = :name, address = :address,
                description = :description, updated_at = :updated_at
            WHERE id = :id`, property)
	} else {
		_, err = tx.NamedExecContext(ctx, `
            INSERT INTO properties (id, name, address, description, created_at, updated_at)
            VALUES (:id, :name, :address, :description, :created_at, :updated_at)`, property)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving property", "property_id", property.ID, "error", err)
		return fmt.Errorf("failed to save property %s: %w", property.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Property saved", "property_id", property.ID)
	return nil
}

// SaveInstruction inserts or updates an AI instruction.
func (s *sqlxStore) SaveInstruction(ctx context.Context, instruction *AIInstruction) error {
	if instruction == nil {
		return fmt.Errorf("cannot save nil instruction")
	}
	if instruction.ID == "" || instruction.PropertyID == "" {
		return fmt.Errorf("instruction must have non-empty id and property_id")
	}

	now := time.Now().UTC()
	instruction.UpdatedAt = now
	if instruction.CreatedAt.IsZero() {
		instruction.CreatedAt = now
	}

	query := `
        INSERT INTO ai_instructions (id, property_id, type, content, is_active, priority, created_at, updated_at)
        VALUES (:id, :property_id, :type, :content, :is_active, :priority, :created_at, :updated_at)
        ON CONFLICT(id) DO UPDATE SET
            type = excluded.type,
            content = excluded.content,
            is_active = excluded.is_active,
            priority = excluded.priority,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, instruction); err != nil {
		s.logger.ErrorContext(ctx, "Error saving instruction",
			"instruction_id", instruction.ID, "property_id", instruction.PropertyID, "error", err)
		return fmt.Errorf("failed to save instruction %s: %w", instruction.ID, err)
	}

	s.logger.DebugContext(ctx, "Instruction saved", "instruction_id", instruction.ID, "type", instruction.Type)
	return nil
}

// ArchiveStaleConversations marks conversations whose last update is older
// than the cutoff as archived.
func (s *sqlxStore) ArchiveStaleConversations(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, fmt.Errorf("olderThanDays must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ? WHERE status = ? AND updated_at < ?`,
		StatusArchived, StatusActive, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error archiving stale conversations", "error", err)
		return 0, fmt.Errorf("failed to archive stale conversations: %w", err)
	}

	archived, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count archived conversations: %w", err)
	}

	if archived > 0 {
		s.logger.InfoContext(ctx, "Archived stale conversations", "count", archived, "cutoff", cutoff)
	}
	return archived, nil
}

// RunMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
