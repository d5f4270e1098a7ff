package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sproutfin/matchback/internal/cache"
)

const activeRulesTTL = 30 * time.Second

type store struct {
	db    *sql.DB
	cache cache.Cache
	mu    sync.RWMutex
}

// New creates a new RuleStore. The cache may be nil, in which case every
// active-rule lookup goes straight to the database.
func New(db *sql.DB, c cache.Cache) RuleStore {
	return &store{
		db:    db,
		cache: c,
	}
}

func activeRulesKey(recipientUserID string) string {
	return "rules:active:" + recipientUserID
}

func (s *store) CreateRule(rule *MatchRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid match rule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO match_rules (id, sponsor_id, recipient_user_id, percent, cap_cents_weekly, asset_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.SponsorID, rule.RecipientUserID, rule.Percent, rule.CapCentsWeekly, rule.AssetType, rule.Status, rule.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create match rule: %w", err)
	}

	s.invalidate(rule.RecipientUserID)
	log.Info("Created match rule", "ruleID", rule.ID, "sponsorID", rule.SponsorID, "recipient", rule.RecipientUserID)
	return nil
}

func (s *store) GetRule(ruleID string) (*MatchRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, sponsor_id, recipient_user_id, percent, cap_cents_weekly, asset_type, status, created_at
		FROM match_rules WHERE id = ?
	`, ruleID)

	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("match rule not found: %s", ruleID)
		}
		return nil, fmt.Errorf("failed to get match rule: %w", err)
	}
	return rule, nil
}

// GetActiveRules returns the active rules for a recipient, serving from
// the cache when possible.
func (s *store) GetActiveRules(recipientUserID string) ([]MatchRule, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(context.Background(), activeRulesKey(recipientUserID)); err == nil {
			var cached []MatchRule
			if err := json.Unmarshal(data, &cached); err == nil {
				log.Debug("Active rules served from cache", "recipient", recipientUserID, "count", len(cached))
				return cached, nil
			}
			log.Warn("Failed to decode cached rules, falling back to database", "recipient", recipientUserID)
		}
	}

	matched, err := s.queryRules(recipientUserID, true)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(matched); err == nil {
			if err := s.cache.Set(context.Background(), activeRulesKey(recipientUserID), data, activeRulesTTL); err != nil {
				log.Warn("Failed to cache active rules", "error", err, "recipient", recipientUserID)
			}
		}
	}
	return matched, nil
}

func (s *store) ListRules(recipientUserID string) ([]MatchRule, error) {
	return s.queryRules(recipientUserID, false)
}

func (s *store) queryRules(recipientUserID string, activeOnly bool) ([]MatchRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sponsor_id, recipient_user_id, percent, cap_cents_weekly, asset_type, status, created_at
		FROM match_rules WHERE recipient_user_id = ?`
	args := []any{recipientUserID}
	if activeOnly {
		query += " AND status = ?"
		args = append(args, StatusActive)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match rules: %w", err)
	}
	defer rows.Close()

	var matched []MatchRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			log.Error("Failed to scan match rule row", "error", err)
			continue
		}
		matched = append(matched, *rule)
	}
	return matched, rows.Err()
}

func (s *store) SetRuleStatus(ruleID string, status RuleStatus) error {
	rule, err := s.GetRule(ruleID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("UPDATE match_rules SET status = ? WHERE id = ?", status, ruleID); err != nil {
		return fmt.Errorf("failed to update rule status: %w", err)
	}

	s.invalidate(rule.RecipientUserID)
	log.Info("Updated rule status", "ruleID", ruleID, "status", status)
	return nil
}

func (s *store) UpsertSponsor(sponsor Sponsor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sponsor.CreatedAt.IsZero() {
		sponsor.CreatedAt = time.Now()
	}

	var paymentMethodID sql.NullString
	if sponsor.PaymentMethodID != "" {
		paymentMethodID = sql.NullString{String: sponsor.PaymentMethodID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO sponsors (id, name, payment_method_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payment_method_id = excluded.payment_method_id;
	`, sponsor.ID, sponsor.Name, paymentMethodID, sponsor.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert sponsor: %w", err)
	}
	return nil
}

func (s *store) GetSponsor(sponsorID string) (*Sponsor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sponsor         Sponsor
		paymentMethodID sql.NullString
		createdAt       int64
	)
	err := s.db.QueryRow(`
		SELECT id, name, payment_method_id, created_at FROM sponsors WHERE id = ?
	`, sponsorID).Scan(&sponsor.ID, &sponsor.Name, &paymentMethodID, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sponsor not found: %s", sponsorID)
		}
		return nil, fmt.Errorf("failed to get sponsor: %w", err)
	}

	sponsor.PaymentMethodID = paymentMethodID.String
	sponsor.CreatedAt = time.Unix(createdAt, 0)
	return &sponsor, nil
}

// Clear wipes rules and sponsors. Used by the dev /clear endpoint and tests.
func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM match_rules"); err != nil {
		log.Error("Failed to clear match rules", "error", err)
	}
	if _, err := s.db.Exec("DELETE FROM sponsors"); err != nil {
		log.Error("Failed to clear sponsors", "error", err)
	}
}

func (s *store) invalidate(recipientUserID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.Background(), activeRulesKey(recipientUserID)); err != nil {
		log.Warn("Failed to invalidate rule cache", "error", err, "recipient", recipientUserID)
	}
}

func scanRule(scanner interface{ Scan(...any) error }) (*MatchRule, error) {
	var (
		rule      MatchRule
		createdAt int64
	)
	err := scanner.Scan(
		&rule.ID, &rule.SponsorID, &rule.RecipientUserID, &rule.Percent,
		&rule.CapCentsWeekly, &rule.AssetType, &rule.Status, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	rule.CreatedAt = time.Unix(createdAt, 0)
	return &rule, nil
}
