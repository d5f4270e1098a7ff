package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sproutfin/matchback/internal/audit"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/notifier"
	"github.com/sproutfin/matchback/internal/payments"
	"github.com/sproutfin/matchback/internal/pubsub"
	"github.com/sproutfin/matchback/internal/rules"
)

// New creates a new Processor.
func New(ruleStore rules.RuleStore, ledgerStore ledger.LedgerStore, gateway payments.Gateway, notifier notifier.Notifier, auditSink audit.Sink, ps pubsub.PubSubClient, metrics metrics.Metrics) *Processor {
	return &Processor{
		rules:    ruleStore,
		ledger:   ledgerStore,
		gateway:  gateway,
		notifier: notifier,
		audit:    auditSink,
		pubsub:   ps,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ProcessSave matches one save event against every active rule for the
// recipient. Each rule is processed independently: a failure on one rule
// becomes that rule's outcome and never aborts the rest.
func (p *Processor) ProcessSave(ctx context.Context, save SaveEvent, dryRun bool) (*Result, error) {
	startTime := p.now()
	defer func() {
		p.metrics.ObserveProcessingDuration(time.Since(startTime).Seconds())
	}()

	if err := validateSave(save); err != nil {
		return nil, err
	}

	log.Info("Processing save event", "saveEventID", save.SaveEventID, "recipient", save.RecipientUserID, "amountCents", save.AmountCents)
	p.metrics.IncSavesProcessed()

	// Abuse guard: reject the whole call before any write when the
	// recipient's save stream is bursting.
	count, err := p.ledger.CountRecentForRecipient(save.RecipientUserID, p.now().Add(-rateLimitWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= rateLimitThreshold {
		log.Warn("Rate limit exceeded", "recipient", save.RecipientUserID, "count", count)
		p.metrics.IncRateLimited()
		if notifyErr := p.notifier.NotifyRateLimited(save.RecipientUserID, count, dryRun); notifyErr != nil {
			log.Error("Failed to send rate limit alert", "error", notifyErr)
		}
		return nil, &RateLimitError{RecipientUserID: save.RecipientUserID, Count: count}
	}

	activeRules, err := p.rules.GetActiveRules(save.RecipientUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up match rules: %w", err)
	}

	result := &Result{
		SaveEventID:     save.SaveEventID,
		RecipientUserID: save.RecipientUserID,
		Outcomes:        []RuleOutcome{},
	}

	if len(activeRules) == 0 {
		log.Info("No active match rules for recipient", "recipient", save.RecipientUserID)
		return result, nil
	}

	weekStart := weekStart(p.now())
	for _, rule := range activeRules {
		outcome := p.processRule(ctx, &rule, save, weekStart, dryRun)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	log.Info("Finished processing save event", "saveEventID", save.SaveEventID, "rules", len(result.Outcomes))
	return result, nil
}

// processRule runs the cap calculation and charge attempt for a single
// rule and folds every failure into the returned outcome.
func (p *Processor) processRule(ctx context.Context, rule *rules.MatchRule, save SaveEvent, weekStart time.Time, dryRun bool) RuleOutcome {
	// Truncate, never round up, so the sponsor is never overcommitted.
	rawMatch := save.AmountCents * int64(rule.Percent) / 100

	weeklySum, err := p.ledger.WeeklyMatchedCents(rule.ID, weekStart)
	if err != nil {
		log.Error("Failed to read weekly cap window", "error", err, "ruleID", rule.ID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeError, Reason: err.Error()}
	}

	remaining := rule.CapCentsWeekly - weeklySum
	if remaining < 0 {
		remaining = 0
	}
	finalMatch := min(rawMatch, remaining)
	if finalMatch == 0 {
		log.Debug("Skipping rule, weekly cap exhausted", "ruleID", rule.ID, "weeklySum", weeklySum)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeSkippedNoCap}
	}

	if dryRun {
		log.Info("[Dry Run] Would record match event", "ruleID", rule.ID, "matchCents", finalMatch)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeCreatedPending, MatchAmountCents: finalMatch, Reason: "dry run"}
	}

	event := &ledger.MatchEvent{
		ID:                  uuid.NewString(),
		MatchRuleID:         rule.ID,
		SaveEventID:         save.SaveEventID,
		SponsorID:           rule.SponsorID,
		RecipientUserID:     save.RecipientUserID,
		OriginalAmountCents: save.AmountCents,
		MatchAmountCents:    finalMatch,
		CreatedAt:           p.now(),
	}

	err = p.ledger.InsertCapped(event, weekStart, rule.CapCentsWeekly)
	if errors.Is(err, ledger.ErrCapExceeded) {
		// A concurrent invocation consumed cap between our read and the
		// insert. Re-read the window and retry once with a clamped amount.
		event, err = p.retryClamped(event, rule, weekStart)
		if err != nil {
			return RuleOutcome{RuleID: rule.ID, Status: OutcomeSkippedNoCap}
		}
		finalMatch = event.MatchAmountCents
	}
	if errors.Is(err, ledger.ErrDuplicateEvent) {
		log.Info("Save event already matched against rule", "saveEventID", save.SaveEventID, "ruleID", rule.ID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeDuplicate}
	}
	if err != nil {
		log.Error("Failed to insert match event", "error", err, "ruleID", rule.ID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeError, Reason: err.Error()}
	}
	p.metrics.IncMatchEventsCreated()

	sponsor, err := p.rules.GetSponsor(rule.SponsorID)
	if err != nil {
		log.Error("Failed to load sponsor for charge", "error", err, "sponsorID", rule.SponsorID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeError, MatchEventID: event.ID, MatchAmountCents: finalMatch, Reason: err.Error()}
	}
	if sponsor.PaymentMethodID == "" {
		log.Info("Sponsor has no payment method, leaving match pending", "sponsorID", sponsor.ID, "eventID", event.ID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeCreatedPending, MatchEventID: event.ID, MatchAmountCents: finalMatch}
	}

	return p.chargeEvent(ctx, rule, sponsor, event)
}

// chargeEvent attempts the off-session charge for a pending match event
// and finalizes its status.
func (p *Processor) chargeEvent(ctx context.Context, rule *rules.MatchRule, sponsor *rules.Sponsor, event *ledger.MatchEvent) RuleOutcome {
	resp, err := p.gateway.ChargeOffSession(ctx, payments.ChargeRequest{
		SponsorID:       sponsor.ID,
		PaymentMethodID: sponsor.PaymentMethodID,
		AmountCents:     event.MatchAmountCents,
		Currency:        "usd",
		Description:     fmt.Sprintf("Sponsor match for save %s", event.SaveEventID),
		IdempotencyKey:  event.ID,
	})
	if err != nil {
		// Declines and gateway errors are both a failed outcome. Retry
		// policy belongs to the scheduler that re-invokes us.
		log.Error("Charge failed", "error", err, "eventID", event.ID, "sponsorID", sponsor.ID)
		p.metrics.IncChargesFailed()
		if updateErr := p.ledger.SetChargeStatus(event.ID, ledger.ChargeFailed, ""); updateErr != nil {
			log.Error("Failed to mark match event failed", "error", updateErr, "eventID", event.ID)
		}
		event.ChargeStatus = ledger.ChargeFailed
		if notifyErr := p.notifier.NotifyChargeFailed(event, err.Error(), false); notifyErr != nil {
			log.Error("Failed to send charge failure alert", "error", notifyErr)
		}
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeFailed, MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents, Reason: err.Error()}
	}

	if err := p.ledger.SetChargeStatus(event.ID, ledger.ChargeSucceeded, resp.Reference); err != nil {
		log.Error("Failed to mark match event succeeded", "error", err, "eventID", event.ID)
		return RuleOutcome{RuleID: rule.ID, Status: OutcomeError, MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents, Reason: err.Error()}
	}
	event.ChargeStatus = ledger.ChargeSucceeded
	event.PaymentReference = resp.Reference
	p.metrics.IncChargesSucceeded()

	p.audit.RecordChargeSucceeded(audit.ChargeEvent{
		MatchEventID:     event.ID,
		RuleID:           rule.ID,
		UserID:           event.RecipientUserID,
		AmountCents:      event.MatchAmountCents,
		PaymentReference: resp.Reference,
		OccurredAt:       p.now(),
	})

	// BTC matches are handed to the conversion pipeline; CASH is credited
	// directly once the charge succeeds.
	if rule.AssetType == rules.AssetBTC {
		if err := p.pubsub.SendMessage(pubsub.TopicConvertBTC, event); err != nil {
			log.Error("Failed to enqueue BTC conversion", "error", err, "eventID", event.ID)
		}
	}

	log.Info("Charge succeeded", "eventID", event.ID, "sponsorID", sponsor.ID, "matchCents", event.MatchAmountCents, "reference", resp.Reference)
	return RuleOutcome{RuleID: rule.ID, Status: OutcomeSucceeded, MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents}
}

// retryClamped re-reads the weekly window after a lost cap race and
// retries the insert once with whatever headroom is left.
func (p *Processor) retryClamped(event *ledger.MatchEvent, rule *rules.MatchRule, weekStart time.Time) (*ledger.MatchEvent, error) {
	weeklySum, err := p.ledger.WeeklyMatchedCents(rule.ID, weekStart)
	if err != nil {
		return nil, err
	}
	remaining := rule.CapCentsWeekly - weeklySum
	if remaining <= 0 {
		return nil, ledger.ErrCapExceeded
	}
	if event.MatchAmountCents > remaining {
		event.MatchAmountCents = remaining
	}
	if err := p.ledger.InsertCapped(event, weekStart, rule.CapCentsWeekly); err != nil {
		return nil, err
	}
	return event, nil
}

// RetryPending sweeps match events still awaiting a charge and attempts
// each one whose sponsor now has a payment method on file.
func (p *Processor) RetryPending(ctx context.Context, dryRun bool) (*RetryResult, error) {
	pending, err := p.ledger.ListPending()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending match events: %w", err)
	}

	result := &RetryResult{}
	if len(pending) == 0 {
		log.Info("No pending match events to retry")
		return result, nil
	}

	log.Info("Retrying pending match events", "count", len(pending))
	for i := range pending {
		event := &pending[i]

		rule, err := p.rules.GetRule(event.MatchRuleID)
		if err != nil {
			log.Error("Failed to load rule for pending event", "error", err, "eventID", event.ID)
			continue
		}
		sponsor, err := p.rules.GetSponsor(event.SponsorID)
		if err != nil {
			log.Error("Failed to load sponsor for pending event", "error", err, "eventID", event.ID)
			continue
		}
		if sponsor.PaymentMethodID == "" {
			result.NoPaymentMethod++
			continue
		}

		if dryRun {
			log.Info("[Dry Run] Would retry charge", "eventID", event.ID, "matchCents", event.MatchAmountCents)
			result.Attempted++
			continue
		}

		result.Attempted++
		outcome := p.chargeEvent(ctx, rule, sponsor, event)
		switch outcome.Status {
		case OutcomeSucceeded:
			result.Succeeded++
		default:
			result.Failed++
		}
	}

	log.Info("Pending retry sweep finished", "attempted", result.Attempted, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// RetryCharge re-attempts the charge for one pending match event.
func (p *Processor) RetryCharge(ctx context.Context, matchEventID string, dryRun bool) (*RuleOutcome, error) {
	event, err := p.ledger.GetEvent(matchEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match event: %w", err)
	}
	if event.ChargeStatus != ledger.ChargePending {
		log.Info("Match event already finalized, skipping retry", "eventID", event.ID, "status", event.ChargeStatus)
		return &RuleOutcome{RuleID: event.MatchRuleID, Status: OutcomeStatus(event.ChargeStatus), MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents}, nil
	}

	rule, err := p.rules.GetRule(event.MatchRuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	sponsor, err := p.rules.GetSponsor(event.SponsorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sponsor: %w", err)
	}
	if sponsor.PaymentMethodID == "" {
		log.Info("Sponsor still has no payment method, leaving match pending", "sponsorID", sponsor.ID, "eventID", event.ID)
		return &RuleOutcome{RuleID: rule.ID, Status: OutcomeCreatedPending, MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents}, nil
	}

	if dryRun {
		log.Info("[Dry Run] Would retry charge", "eventID", event.ID, "matchCents", event.MatchAmountCents)
		return &RuleOutcome{RuleID: rule.ID, Status: OutcomeCreatedPending, MatchEventID: event.ID, MatchAmountCents: event.MatchAmountCents, Reason: "dry run"}, nil
	}

	outcome := p.chargeEvent(ctx, rule, sponsor, event)
	return &outcome, nil
}

func validateSave(save SaveEvent) error {
	if _, err := uuid.Parse(save.SaveEventID); err != nil {
		return &ValidationError{Field: "save_event_id", Message: "must be a UUID"}
	}
	if _, err := uuid.Parse(save.RecipientUserID); err != nil {
		return &ValidationError{Field: "user_id", Message: "must be a UUID"}
	}
	if save.AmountCents <= 0 {
		return &ValidationError{Field: "amount_cents", Message: "must be a positive integer"}
	}
	return nil
}

// weekStart returns the most recent Sunday at 00:00 in local time. The
// weekly cap window is calendar-aligned, not trailing.
func weekStart(now time.Time) time.Time {
	now = now.Local()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}
