package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sproutfin/matchback/internal/audit"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/notifier"
	"github.com/sproutfin/matchback/internal/payments"
	"github.com/sproutfin/matchback/internal/pubsub"
	"github.com/sproutfin/matchback/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSaveID = "4f5f2f3a-9d4e-4a6b-8c1d-2e3f4a5b6c7d"
	testUserID = "8a9b0c1d-2e3f-4a5b-6c7d-8e9f0a1b2c3d"
)

type testFixture struct {
	rules    *rules.MockStore
	ledger   *ledger.MockStore
	gateway  *payments.MockGateway
	notifier *notifier.Mock
	audit    *audit.MockSink
	pubsub   *pubsub.MockPubSubClient
	metrics  *metrics.Mock
}

func newTestProcessor(t *testing.T) (*Processor, *testFixture) {
	t.Helper()
	f := &testFixture{
		rules:    rules.NewMock(),
		ledger:   ledger.NewMock(),
		gateway:  payments.NewMock(),
		notifier: notifier.NewMock(),
		audit:    audit.NewMock(),
		pubsub:   pubsub.NewMock("TEST"),
		metrics:  metrics.NewMock(),
	}
	p := New(f.rules, f.ledger, f.gateway, f.notifier, f.audit, f.pubsub, f.metrics)
	return p, f
}

func activeRule(id string, percent int, capWeekly int64) rules.MatchRule {
	return rules.MatchRule{
		ID:              id,
		SponsorID:       "sponsor-" + id,
		RecipientUserID: testUserID,
		Percent:         percent,
		CapCentsWeekly:  capWeekly,
		AssetType:       rules.AssetCash,
		Status:          rules.StatusActive,
	}
}

func sponsorWithCard(id string) *rules.Sponsor {
	return &rules.Sponsor{ID: id, Name: "Test Sponsor", PaymentMethodID: "pm_123"}
}

func TestProcessSave_Validation(t *testing.T) {
	tests := []struct {
		name string
		save SaveEvent
	}{
		{"malformed save event id", SaveEvent{SaveEventID: "not-a-uuid", RecipientUserID: testUserID, AmountCents: 100}},
		{"malformed user id", SaveEvent{SaveEventID: testSaveID, RecipientUserID: "user-1", AmountCents: 100}},
		{"zero amount", SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 0}},
		{"negative amount", SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: -50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, f := newTestProcessor(t)

			result, err := p.ProcessSave(context.Background(), tt.save, false)

			require.Error(t, err)
			var valErr *ValidationError
			assert.ErrorAs(t, err, &valErr)
			assert.Nil(t, result)

			// Rejected before any side effect.
			assert.Empty(t, f.ledger.CountRecentForRecipientCalls)
			assert.Empty(t, f.ledger.InsertCappedCalls)
			assert.Empty(t, f.rules.GetActiveRulesCalls)
			assert.Empty(t, f.gateway.ChargeOffSessionCalls)
		})
	}
}

func TestProcessSave_NoActiveRulesIsNoOp(t *testing.T) {
	p, f := newTestProcessor(t)

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 500}, false)

	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, f.ledger.InsertCappedCalls)
	assert.Equal(t, 1, f.metrics.SavesProcessed())
}

func TestProcessSave_RateLimit(t *testing.T) {
	p, f := newTestProcessor(t)
	f.ledger.CountRecentForRecipientFunc = func(recipientUserID string, since time.Time) (int, error) {
		return 10, nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 500}, false)

	require.Error(t, err)
	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, testUserID, rlErr.RecipientUserID)
	assert.Equal(t, 10, rlErr.Count)
	assert.Nil(t, result)

	assert.Empty(t, f.ledger.InsertCappedCalls, "no match event should be created")
	assert.Empty(t, f.rules.GetActiveRulesCalls)
	assert.Equal(t, 1, f.metrics.RateLimited())
	require.Len(t, f.notifier.RateLimitedCalls, 1)
	assert.Equal(t, testUserID, f.notifier.RateLimitedCalls[0].RecipientUserID)
}

func TestProcessSave_WorkedExample(t *testing.T) {
	// Rule: 50% up to 1000 cents per week. A 2400 cent save matches 1000
	// (cap-clamped); a second save the same week is skipped entirely.
	p, f := newTestProcessor(t)
	rule := activeRule("rule-1", 50, 1000)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{rule}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return sponsorWithCard(sponsorID), nil
	}

	weeklySum := int64(0)
	f.ledger.WeeklyMatchedCentsFunc = func(ruleID string, weekStart time.Time) (int64, error) {
		return weeklySum, nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 2400}, false)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeSucceeded, result.Outcomes[0].Status)
	assert.Equal(t, int64(1000), result.Outcomes[0].MatchAmountCents, "raw match 1200 must clamp to the 1000 cap")

	require.Len(t, f.gateway.ChargeOffSessionCalls, 1)
	charge := f.gateway.ChargeOffSessionCalls[0]
	assert.Equal(t, int64(1000), charge.AmountCents)
	assert.Equal(t, "pm_123", charge.PaymentMethodID)
	assert.Equal(t, result.Outcomes[0].MatchEventID, charge.IdempotencyKey)

	require.Len(t, f.audit.RecordChargeSucceededCalls, 1)
	assert.Equal(t, int64(1000), f.audit.RecordChargeSucceededCalls[0].AmountCents)

	// Second save of the same week: cap exhausted, rule skipped.
	weeklySum = 1000
	result, err = p.ProcessSave(context.Background(), SaveEvent{SaveEventID: "2f5f2f3a-9d4e-4a6b-8c1d-2e3f4a5b6c7d", RecipientUserID: testUserID, AmountCents: 2400}, false)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeSkippedNoCap, result.Outcomes[0].Status)
	assert.Len(t, f.ledger.InsertCappedCalls, 1, "no second ledger write")
	assert.Len(t, f.gateway.ChargeOffSessionCalls, 1, "no second charge attempt")
}

func TestProcessSave_RuleFailureIsIsolated(t *testing.T) {
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 10, 1000), activeRule("rule-2", 10, 1000)}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return sponsorWithCard(sponsorID), nil
	}
	f.ledger.WeeklyMatchedCentsFunc = func(ruleID string, weekStart time.Time) (int64, error) {
		if ruleID == "rule-1" {
			return 0, errors.New("store unavailable")
		}
		return 0, nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 1000}, false)

	require.NoError(t, err, "one rule failing must not fail the call")
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, OutcomeError, result.Outcomes[0].Status)
	assert.Equal(t, OutcomeSucceeded, result.Outcomes[1].Status)
	assert.Equal(t, int64(100), result.Outcomes[1].MatchAmountCents)
}

func TestProcessSave_NoPaymentMethodLeavesPending(t *testing.T) {
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 25, 10000)}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return &rules.Sponsor{ID: sponsorID, Name: "No Card Yet"}, nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 1000}, false)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeCreatedPending, result.Outcomes[0].Status)
	assert.Equal(t, int64(250), result.Outcomes[0].MatchAmountCents)
	assert.Len(t, f.ledger.InsertCappedCalls, 1, "the match event is still recorded")
	assert.Empty(t, f.gateway.ChargeOffSessionCalls, "no charge without a payment method")
	assert.Empty(t, f.ledger.SetChargeStatusCalls, "event stays pending")
}

func TestProcessSave_ChargeDeclined(t *testing.T) {
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 50, 10000)}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return sponsorWithCard(sponsorID), nil
	}
	f.gateway.ChargeOffSessionFunc = func(ctx context.Context, req payments.ChargeRequest) (*payments.ChargeResponse, error) {
		return nil, &payments.ChargeError{Code: "card_declined", Message: "insufficient funds"}
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 1000}, false)

	require.NoError(t, err, "a declined charge is an outcome, not a call failure")
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeFailed, result.Outcomes[0].Status)
	assert.Contains(t, result.Outcomes[0].Reason, "card_declined")

	require.Len(t, f.ledger.SetChargeStatusCalls, 1)
	assert.Equal(t, ledger.ChargeFailed, f.ledger.SetChargeStatusCalls[0].Status)
	assert.Equal(t, 1, f.metrics.ChargesFailed())
	require.Len(t, f.notifier.ChargeFailedCalls, 1)
	assert.Empty(t, f.audit.RecordChargeSucceededCalls)
}

func TestProcessSave_BTCHandsOffToConversion(t *testing.T) {
	p, f := newTestProcessor(t)
	rule := activeRule("rule-1", 100, 10000)
	rule.AssetType = rules.AssetBTC
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{rule}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return sponsorWithCard(sponsorID), nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 500}, false)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeSucceeded, result.Outcomes[0].Status)

	require.Len(t, f.pubsub.SendMessageCalls, 1)
	assert.Equal(t, pubsub.TopicConvertBTC, f.pubsub.SendMessageCalls[0].Topic)
}

func TestProcessSave_DuplicateSaveEvent(t *testing.T) {
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 50, 10000)}, nil
	}
	f.ledger.InsertCappedFunc = func(event *ledger.MatchEvent, weekStart time.Time, capCentsWeekly int64) error {
		return ledger.ErrDuplicateEvent
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 1000}, false)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeDuplicate, result.Outcomes[0].Status)
	assert.Empty(t, f.gateway.ChargeOffSessionCalls, "a redelivered save must never double-charge")
}

func TestProcessSave_LostCapRaceRetriesClamped(t *testing.T) {
	// A concurrent invocation consumes cap between our window read and
	// the insert. The first insert is rejected; the retry clamps to the
	// remaining headroom.
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 50, 1000)}, nil
	}
	f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
		return sponsorWithCard(sponsorID), nil
	}

	reads := 0
	f.ledger.WeeklyMatchedCentsFunc = func(ruleID string, weekStart time.Time) (int64, error) {
		reads++
		if reads == 1 {
			return 0, nil // stale read, race not yet visible
		}
		return 800, nil
	}
	inserts := 0
	f.ledger.InsertCappedFunc = func(event *ledger.MatchEvent, weekStart time.Time, capCentsWeekly int64) error {
		inserts++
		if inserts == 1 {
			return ledger.ErrCapExceeded
		}
		event.ChargeStatus = ledger.ChargePending
		return nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 2400}, false)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, OutcomeSucceeded, result.Outcomes[0].Status)
	assert.Equal(t, int64(200), result.Outcomes[0].MatchAmountCents, "retry must clamp to remaining headroom")
	require.Len(t, f.gateway.ChargeOffSessionCalls, 1)
	assert.Equal(t, int64(200), f.gateway.ChargeOffSessionCalls[0].AmountCents)
}

func TestProcessSave_DryRunWritesNothing(t *testing.T) {
	p, f := newTestProcessor(t)
	f.rules.GetActiveRulesFunc = func(recipientUserID string) ([]rules.MatchRule, error) {
		return []rules.MatchRule{activeRule("rule-1", 50, 10000)}, nil
	}

	result, err := p.ProcessSave(context.Background(), SaveEvent{SaveEventID: testSaveID, RecipientUserID: testUserID, AmountCents: 1000}, true)

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, int64(500), result.Outcomes[0].MatchAmountCents)
	assert.Empty(t, f.ledger.InsertCappedCalls)
	assert.Empty(t, f.gateway.ChargeOffSessionCalls)
}

func TestRetryPending(t *testing.T) {
	t.Run("charges events whose sponsor now has a payment method", func(t *testing.T) {
		p, f := newTestProcessor(t)
		f.ledger.ListPendingFunc = func() ([]ledger.MatchEvent, error) {
			return []ledger.MatchEvent{
				{ID: "evt-1", MatchRuleID: "rule-1", SponsorID: "sponsor-1", RecipientUserID: testUserID, MatchAmountCents: 300, ChargeStatus: ledger.ChargePending},
				{ID: "evt-2", MatchRuleID: "rule-1", SponsorID: "sponsor-2", RecipientUserID: testUserID, MatchAmountCents: 400, ChargeStatus: ledger.ChargePending},
			}, nil
		}
		rule := activeRule("rule-1", 50, 10000)
		f.rules.GetRuleFunc = func(ruleID string) (*rules.MatchRule, error) {
			return &rule, nil
		}
		f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
			if sponsorID == "sponsor-1" {
				return sponsorWithCard(sponsorID), nil
			}
			return &rules.Sponsor{ID: sponsorID}, nil
		}

		result, err := p.RetryPending(context.Background(), false)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Attempted)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 1, result.NoPaymentMethod)

		require.Len(t, f.gateway.ChargeOffSessionCalls, 1)
		assert.Equal(t, "evt-1", f.gateway.ChargeOffSessionCalls[0].IdempotencyKey)
		require.Len(t, f.ledger.SetChargeStatusCalls, 1)
		assert.Equal(t, ledger.ChargeSucceeded, f.ledger.SetChargeStatusCalls[0].Status)
	})

	t.Run("dry run counts without charging", func(t *testing.T) {
		p, f := newTestProcessor(t)
		f.ledger.ListPendingFunc = func() ([]ledger.MatchEvent, error) {
			return []ledger.MatchEvent{
				{ID: "evt-1", MatchRuleID: "rule-1", SponsorID: "sponsor-1", RecipientUserID: testUserID, MatchAmountCents: 300, ChargeStatus: ledger.ChargePending},
			}, nil
		}
		rule := activeRule("rule-1", 50, 10000)
		f.rules.GetRuleFunc = func(ruleID string) (*rules.MatchRule, error) {
			return &rule, nil
		}
		f.rules.GetSponsorFunc = func(sponsorID string) (*rules.Sponsor, error) {
			return sponsorWithCard(sponsorID), nil
		}

		result, err := p.RetryPending(context.Background(), true)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Attempted)
		assert.Empty(t, f.gateway.ChargeOffSessionCalls)
		assert.Empty(t, f.ledger.SetChargeStatusCalls)
	})
}

func TestWeekStart(t *testing.T) {
	// Wednesday 2025-07-09 15:30 local -> Sunday 2025-07-06 00:00 local.
	wednesday := time.Date(2025, 7, 9, 15, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2025, 7, 6, 0, 0, 0, 0, time.Local), weekStart(wednesday))

	// A Sunday maps to itself at midnight.
	sunday := time.Date(2025, 7, 6, 23, 59, 0, 0, time.Local)
	assert.Equal(t, time.Date(2025, 7, 6, 0, 0, 0, 0, time.Local), weekStart(sunday))
}
