package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new LedgerStore.
func New(db *sql.DB) LedgerStore {
	return &store{
		db: db,
	}
}

// InsertCapped is the critical section of cap enforcement: the weekly sum
// is re-read and compared against the cap inside the INSERT itself, so two
// invocations racing on the same rule cannot jointly exceed the cap.
func (s *store) InsertCapped(event *MatchEvent, weekStart time.Time, capCentsWeekly int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO match_events (id, match_rule_id, save_event_id, sponsor_id, recipient_user_id, original_amount_cents, match_amount_cents, charge_status, payment_reference, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?
		WHERE (
			SELECT COALESCE(SUM(match_amount_cents), 0)
			FROM match_events
			WHERE match_rule_id = ? AND created_at >= ?
		) + ? <= ?
	`,
		event.ID, event.MatchRuleID, event.SaveEventID, event.SponsorID, event.RecipientUserID,
		event.OriginalAmountCents, event.MatchAmountCents, ChargePending, event.CreatedAt.Unix(),
		event.MatchRuleID, weekStart.Unix(), event.MatchAmountCents, capCentsWeekly,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert match event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCapExceeded
	}

	event.ChargeStatus = ChargePending
	log.Debug("Inserted match event", "eventID", event.ID, "ruleID", event.MatchRuleID, "matchCents", event.MatchAmountCents)
	return nil
}

func (s *store) WeeklyMatchedCents(ruleID string, weekStart time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(match_amount_cents), 0)
		FROM match_events
		WHERE match_rule_id = ? AND created_at >= ?
	`, ruleID, weekStart.Unix()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum weekly matches: %w", err)
	}
	return sum, nil
}

func (s *store) CountRecentForRecipient(recipientUserID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM match_events
		WHERE recipient_user_id = ? AND created_at >= ?
	`, recipientUserID, since.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent match events: %w", err)
	}
	return count, nil
}

// SetChargeStatus applies the single pending -> succeeded/failed
// transition. Finalized events are write-once.
func (s *store) SetChargeStatus(eventID string, status ChargeStatus, paymentReference string) error {
	if status != ChargeSucceeded && status != ChargeFailed {
		return fmt.Errorf("invalid target charge status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ref sql.NullString
	if paymentReference != "" {
		ref = sql.NullString{String: paymentReference, Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE match_events SET charge_status = ?, payment_reference = ?
		WHERE id = ? AND charge_status = ?
	`, status, ref, eventID, ChargePending)
	if err != nil {
		return fmt.Errorf("failed to update charge status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

func (s *store) GetEvent(eventID string) (*MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(selectEvents+" WHERE id = ?", eventID)
	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("match event not found: %s", eventID)
		}
		return nil, fmt.Errorf("failed to get match event: %w", err)
	}
	return event, nil
}

func (s *store) ListForRecipient(recipientUserID string) ([]MatchEvent, error) {
	return s.queryEvents(selectEvents+" WHERE recipient_user_id = ? ORDER BY created_at DESC", recipientUserID)
}

// ListPending returns events still awaiting a charge attempt, oldest
// first, for the external retry scheduler.
func (s *store) ListPending() ([]MatchEvent, error) {
	return s.queryEvents(selectEvents+" WHERE charge_status = ? ORDER BY created_at ASC", ChargePending)
}

func (s *store) queryEvents(query string, args ...any) ([]MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match events: %w", err)
	}
	defer rows.Close()

	var events []MatchEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			log.Error("Failed to scan match event row", "error", err)
			continue
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// Clear wipes all match events. Used by the dev /clear endpoint and tests.
func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM match_events"); err != nil {
		log.Error("Failed to clear match events", "error", err)
	}
}

const selectEvents = `
	SELECT id, match_rule_id, save_event_id, sponsor_id, recipient_user_id,
	       original_amount_cents, match_amount_cents, charge_status, payment_reference, created_at
	FROM match_events`

func scanEvent(scanner interface{ Scan(...any) error }) (*MatchEvent, error) {
	var (
		event     MatchEvent
		ref       sql.NullString
		createdAt int64
	)
	err := scanner.Scan(
		&event.ID, &event.MatchRuleID, &event.SaveEventID, &event.SponsorID, &event.RecipientUserID,
		&event.OriginalAmountCents, &event.MatchAmountCents, &event.ChargeStatus, &ref, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	event.PaymentReference = ref.String
	event.CreatedAt = time.Unix(createdAt, 0)
	return &event, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
