package financial

const (
	maxApprovedRows       = 15
	minApprovedCategories = 3
)

// Params filters a financial data query. Zero values mean "no constraint".
type Params struct {
	CompanyID string
	Year      int
	Category  string
	Metric    string
	MinValue  *float64
	MaxValue  *float64
}

// Key identifies the query for caching.
func (p Params) Key() string {
	return "financial-data?" + p.Values().Encode()
}

// RatioFilter narrows a ratio table on the client side.
type RatioFilter struct {
	// Search matches category, metric or explanation, case-insensitively.
	Search   string
	Category string
}
