package rules

// RuleStore defines the database operations for match rules and sponsors.
// Rules are created and paused by the sponsor-onboarding flow; the match
// processor only ever reads them.
type RuleStore interface {
	CreateRule(rule *MatchRule) error
	GetRule(ruleID string) (*MatchRule, error)
	GetActiveRules(recipientUserID string) ([]MatchRule, error)
	ListRules(recipientUserID string) ([]MatchRule, error)
	SetRuleStatus(ruleID string, status RuleStatus) error
	UpsertSponsor(sponsor Sponsor) error
	GetSponsor(sponsorID string) (*Sponsor, error)
	Clear()
}
