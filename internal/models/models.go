package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Assessment grades a single ratio.
type Assessment string

const (
	AssessmentPositive Assessment = "positive"
	AssessmentNegative Assessment = "negative"
	AssessmentNeutral  Assessment = "neutral"
)

// ParseAssessment maps a wire value to an Assessment, defaulting to neutral.
func ParseAssessment(s string) Assessment {
	switch Assessment(s) {
	case AssessmentPositive, AssessmentNegative, AssessmentNeutral:
		return Assessment(s)
	}
	return AssessmentNeutral
}

// RatioValue is either a number or an already formatted string ("12.5%").
type RatioValue struct {
	Number decimal.Decimal
	Text   string
	IsText bool
}

func NumberValue(d decimal.Decimal) RatioValue { return RatioValue{Number: d} }

func FloatValue(f float64) RatioValue { return RatioValue{Number: decimal.NewFromFloat(f)} }

func TextValue(s string) RatioValue { return RatioValue{Text: s, IsText: true} }

// String renders the value the way it is displayed and exported.
func (v RatioValue) String() string {
	if v.IsText {
		return v.Text
	}
	return v.Number.String()
}

// Float returns the numeric value. Text values parse when they hold a plain number.
func (v RatioValue) Float() (float64, bool) {
	if !v.IsText {
		return v.Number.InexactFloat64(), true
	}
	d, err := decimal.NewFromString(v.Text)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func (v RatioValue) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return []byte(v.Number.String()), nil
}

func (v *RatioValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = RatioValue{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("ratio value %s: %w", data, err)
	}
	*v = NumberValue(d)
	return nil
}

type FinancialRatio struct {
	ID          int        `json:"id"`
	Category    string     `json:"category"`
	Metric      string     `json:"metric"`
	Value       RatioValue `json:"value"`
	Explanation string     `json:"explanation"`
	Assessment  Assessment `json:"assessment,omitempty"`
}

// RatioRow is one row of the financial-data API response.
type RatioRow struct {
	Category    string     `json:"Category"`
	Metric      string     `json:"Metric"`
	Value       RatioValue `json:"Value"`
	Explanation string     `json:"Explanation"`
}

type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// RatioStatus is a presentation heuristic derived from the response shape.
type RatioStatus struct {
	TotalStatus    Status `json:"totalStatus"`
	CategoryStatus Status `json:"categoryStatus"`
}

type FinancialDataResponse struct {
	Data            []RatioRow   `json:"data"`
	Categories      []string     `json:"categories"`
	Insights        []string     `json:"insights"`
	Recommendations []string     `json:"recommendations"`
	RatioStatus     *RatioStatus `json:"ratioStatus,omitempty"`
	UploadSource    string       `json:"uploadSource,omitempty"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known levels.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// ApprovalThreshold is the inclusive credit score at which a report is approved.
const ApprovalThreshold = 70

// mediumRiskFloor is the lowest score still banded as medium risk.
const mediumRiskFloor = 50

// RiskLevelForScore bands a credit score. Scores at or above the approval
// threshold are low risk.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= ApprovalThreshold:
		return RiskLow
	case score >= mediumRiskFloor:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// TrendYears is the length of every trend series.
const TrendYears = 5

type Trends struct {
	Revenue [TrendYears]float64 `json:"revenue"`
	Profit  [TrendYears]float64 `json:"profit"`
	Debt    [TrendYears]float64 `json:"debt"`
}

type Report struct {
	ReportID        string           `json:"reportId"`
	CompanyID       string           `json:"companyId"`
	CompanyName     string           `json:"companyName"`
	Industry        string           `json:"industry"`
	Date            string           `json:"date"`
	Year            int              `json:"year"`
	CreditScore     int              `json:"creditScore"`
	Ratios          []FinancialRatio `json:"ratios"`
	Insights        []string         `json:"insights"`
	Recommendations []string         `json:"recommendations"`
	RiskLevel       RiskLevel        `json:"riskLevel"`
	Trends          Trends           `json:"trends"`
	CompanyProfile  string           `json:"companyProfile"`
}

// ApprovalStatus is the binary credit decision for the report.
func (r *Report) ApprovalStatus() Status {
	if r.CreditScore >= ApprovalThreshold {
		return StatusApproved
	}
	return StatusDeclined
}

type StoredFile struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// ListResult is a listing snapshot. Truncated is set when more keys exist
// under the prefix than were fetched.
type ListResult struct {
	Files     []StoredFile `json:"files"`
	Truncated bool         `json:"truncated"`
}

type UploadResult struct {
	Location string `json:"location"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	ETag     string `json:"etag"`
}

// Upload is a processed report document recorded in the database.
type Upload struct {
	ID         string                 `json:"id"`
	Key        string                 `json:"key"`
	Source     string                 `json:"source"`
	Response   *FinancialDataResponse `json:"response"`
	CreatedAt  time.Time              `json:"created_at"`
	RatioCount int                    `json:"ratio_count"`
}

// ReportIDSeparator joins company id and report date in a report id.
const ReportIDSeparator = "-"

// ReportID composes the id of a company's report for a date.
func ReportID(companyID, date string) string {
	return companyID + ReportIDSeparator + date
}
