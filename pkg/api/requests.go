package api

// CreateRunRequest is the HTTP request body for POST /api/v1/runs.
// Settings not supplied fall back to the server's configured defaults
// (config.Defaults(), possibly overridden by the server's settings file).
type CreateRunRequest struct {
	OwnerID  string   `json:"owner_id" binding:"required"`
	Seeds    []string `json:"seeds" binding:"required,min=1,max=5"`
	Market   string   `json:"market"`
	Language string   `json:"language"`

	MaxTotalKeywords *int     `json:"max_total_keywords"`
	PostsPerMonth    *int     `json:"posts_per_month"`
	DurationMonths   *int     `json:"duration_months"`
	BudgetLimit      *float64 `json:"budget_limit"`
}
