package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sproutfin/matchback/internal/ledger"
	"github.com/sproutfin/matchback/internal/metrics"
	"github.com/sproutfin/matchback/internal/processor"
	"github.com/sproutfin/matchback/internal/rules"
)

// respondJSON writes a JSON payload with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

// respondError writes the {"error": ...} shape used for all failures.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) ClearStoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received request to clear entire store")
		s.Ledger.Clear()
		s.Rules.Clear()
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Store cleared!")
		log.Info("Store cleared successfully")
	}
}

// ProcessSaveHandler is the main entry point: one call per save event.
func (s *Server) ProcessSaveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		var save processor.SaveEvent
		if err := json.NewDecoder(r.Body).Decode(&save); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		isDryRun := isDryRunFromContext(r)
		result, err := s.Processor.ProcessSave(r.Context(), save, isDryRun)
		if err != nil {
			var valErr *processor.ValidationError
			var rlErr *processor.RateLimitError
			switch {
			case errors.As(err, &valErr):
				respondError(w, http.StatusBadRequest, valErr.Error())
			case errors.As(err, &rlErr):
				respondError(w, http.StatusTooManyRequests, rlErr.Error())
			default:
				log.Error("Save processing failed", "error", err, "saveEventID", save.SaveEventID)
				respondError(w, http.StatusInternalServerError, "failed to process save event")
			}
			return
		}

		s.recordOutcomes(result)
		respondJSON(w, http.StatusOK, struct {
			Message string            `json:"message"`
			Result  *processor.Result `json:"result"`
		}{"Save event processed.", result})
	}
}

// recordOutcomes bumps the durable lifetime counters behind /stats.
func (s *Server) recordOutcomes(result *processor.Result) {
	s.MetricsStore.Increment(metrics.KeySavesProcessed)
	for _, outcome := range result.Outcomes {
		switch outcome.Status {
		case processor.OutcomeSucceeded:
			s.MetricsStore.Increment(metrics.KeyMatchesCreated)
			s.MetricsStore.Increment(metrics.KeyChargesSucceeded)
		case processor.OutcomeFailed:
			s.MetricsStore.Increment(metrics.KeyMatchesCreated)
			s.MetricsStore.Increment(metrics.KeyChargesFailed)
		case processor.OutcomeCreatedPending:
			s.MetricsStore.Increment(metrics.KeyMatchesCreated)
		}
	}
}

// RulesHandler lists rules for a recipient (GET) or creates one (POST).
func (s *Server) RulesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			recipient := r.URL.Query().Get("user_id")
			if recipient == "" {
				respondError(w, http.StatusBadRequest, "user_id query parameter is required")
				return
			}
			matched, err := s.Rules.ListRules(recipient)
			if err != nil {
				log.Error("Failed to list rules", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to list rules")
				return
			}
			if matched == nil {
				matched = []rules.MatchRule{}
			}
			respondJSON(w, http.StatusOK, matched)

		case http.MethodPost:
			var rule rules.MatchRule
			if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
				respondError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			if rule.ID == "" {
				rule.ID = uuid.NewString()
			}
			if rule.Status == "" {
				rule.Status = rules.StatusActive
			}
			if rule.AssetType == "" {
				rule.AssetType = rules.AssetCash
			}
			if err := rule.Validate(); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := s.Rules.CreateRule(&rule); err != nil {
				log.Error("Failed to create rule", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to create rule")
				return
			}
			respondJSON(w, http.StatusCreated, rule)

		default:
			respondError(w, http.StatusMethodNotAllowed, "GET or POST required")
		}
	}
}

// RuleStatusHandler pauses or resumes a rule.
func (s *Server) RuleStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		var req struct {
			RuleID string           `json:"rule_id"`
			Status rules.RuleStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Status != rules.StatusActive && req.Status != rules.StatusPaused {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
			return
		}

		if err := s.Rules.SetRuleStatus(req.RuleID, req.Status); err != nil {
			log.Error("Failed to update rule status", "error", err, "ruleID", req.RuleID)
			respondError(w, http.StatusInternalServerError, "failed to update rule status")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Rule status updated."})
	}
}

// UpsertSponsorHandler creates or updates a sponsor, including attaching
// a payment method once one is stored with the gateway.
func (s *Server) UpsertSponsorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		var sponsor rules.Sponsor
		if err := json.NewDecoder(r.Body).Decode(&sponsor); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if sponsor.ID == "" {
			sponsor.ID = uuid.NewString()
		}
		if sponsor.Name == "" {
			respondError(w, http.StatusBadRequest, "name is required")
			return
		}

		if err := s.Rules.UpsertSponsor(sponsor); err != nil {
			log.Error("Failed to upsert sponsor", "error", err, "sponsorID", sponsor.ID)
			respondError(w, http.StatusInternalServerError, "failed to upsert sponsor")
			return
		}
		respondJSON(w, http.StatusOK, sponsor)
	}
}

// ListEventsHandler returns a recipient's match events, newest first.
func (s *Server) ListEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipient := r.URL.Query().Get("user_id")
		if recipient == "" {
			respondError(w, http.StatusBadRequest, "user_id query parameter is required")
			return
		}

		events, err := s.Ledger.ListForRecipient(recipient)
		if err != nil {
			log.Error("Failed to list match events", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to list match events")
			return
		}
		if events == nil {
			events = []ledger.MatchEvent{}
		}
		respondJSON(w, http.StatusOK, events)
	}
}

// StatsHandler returns the durable lifetime counters.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := s.MetricsStore.GetAll()
		if err != nil {
			log.Error("Failed to read metrics", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to read metrics")
			return
		}
		respondJSON(w, http.StatusOK, all)
	}
}

// RetryPendingHandler sweeps all pending match events. Normally driven
// by the scheduled function, exposed for manual operation.
func (s *Server) RetryPendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		isDryRun := isDryRunFromContext(r)
		result, err := s.Processor.RetryPending(r.Context(), isDryRun)
		if err != nil {
			log.Error("Pending retry sweep failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to retry pending charges")
			return
		}
		respondJSON(w, http.StatusOK, struct {
			Message string                 `json:"message"`
			Result  *processor.RetryResult `json:"result"`
		}{"Pending retry sweep completed.", result})
	}
}

// RetryChargeHandler receives pub/sub push deliveries from the
// retry-charge subscription and re-attempts a single pending charge.
func (s *Server) RetryChargeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to read request body")
			return
		}
		log.Debug("Received retry charge message", "body", string(bodyBytes))

		// Pub/sub push wraps the payload: JSON envelope, base64 data,
		// MessagePack body.
		var pubsubMsg struct {
			Subscription string `json:"subscription"`
			Message      struct {
				Data string `json:"data"`
			} `json:"message"`
		}
		if err := json.Unmarshal(bodyBytes, &pubsubMsg); err != nil {
			log.Error("Failed to unmarshal wrapper JSON", "error", err)
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		rawData, err := base64.StdEncoding.DecodeString(pubsubMsg.Message.Data)
		if err != nil {
			log.Error("Failed to decode base64 data", "error", err)
			respondError(w, http.StatusBadRequest, "invalid base64 data")
			return
		}

		event := ledger.MatchEvent{}
		if err := s.pubsub.ProcessMessage(rawData, &event); err != nil {
			respondError(w, http.StatusBadRequest, "invalid message payload")
			return
		}

		isDryRun := isDryRunFromContext(r)
		if _, err := s.Processor.RetryCharge(r.Context(), event.ID, isDryRun); err != nil {
			log.Error("Failed to retry charge", "error", err, "eventID", event.ID)
			respondError(w, http.StatusInternalServerError, "failed to retry charge")
			return
		}
		w.Write([]byte("OK"))
	}
}
