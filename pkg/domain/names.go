package domain

// Parent (event) field names, in prompt order.
const (
	FieldTitle              = "title"
	FieldOrganization       = "organization"
	FieldRegistrationDate   = "registration_date"
	FieldHackingStart       = "hacking_start"
	FieldSubmissionDeadline = "submission_deadline"
	FieldTotalBudget        = "total_budget"
	FieldChallengeCount     = "challenge_count"
	FieldLogo               = "logo"
	FieldBanner             = "banner"
)

// Child (challenge) field names, in prompt order. Children reuse FieldTitle.
const (
	FieldDescription     = "description"
	FieldPrizeAmount     = "prize_amount"
	FieldSponsors        = "sponsors"
	FieldJudgingCriteria = "judging_criteria"
	FieldResources       = "resources"
)

const (
	// MinTotalBudget is the smallest acceptable event budget.
	MinTotalBudget = 20000
	// MinChildCount is the smallest acceptable number of challenges.
	MinChildCount = 2
	// MinJudgingCriteria is the number of distinct criteria each challenge needs.
	MinJudgingCriteria = 4
	// Sentinel is the value the oracle returns when it cannot resolve an answer.
	Sentinel = "INVALID"
	// BudgetCurrency is the currency of every budget and prize.
	BudgetCurrency = "USDC"
)
