package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ShallowReport is the short per-company assessment produced in batches.
type ShallowReport struct {
	CompanyProfile CompanyProfile `json:"companyProfile"`
	RiskAssessment RiskAssessment `json:"riskAssessment"`
}

// CompanyProfile holds the basic company facts of a shallow report.
type CompanyProfile struct {
	Headquarters        string `json:"headquarters"`
	Ticker              string `json:"ticker"`
	Founded             int    `json:"founded"`
	Sector              string `json:"sector"`
	Exchange            string `json:"exchange"`
	BusinessDescription string `json:"businessDescription"`
}

// RiskAssessment is the ethical guideline assessment of a company.
// Category is "1" (highest risk) through "4".
type RiskAssessment struct {
	Category   string   `json:"category" jsonschema:"enum=1,enum=2,enum=3,enum=4"`
	Concerns   string   `json:"concerns"`
	Guidelines []string `json:"guidelines"`
	Rationale  string   `json:"rationale"`
}

// HighestRiskCategory is the risk category that qualifies a company for a deep report.
const HighestRiskCategory = "1"

// ParseShallowReport decodes the stored shallow report of an investment.
// It returns nil without error when no report is attached.
func (i *Investment) ParseShallowReport() (*ShallowReport, error) {
	if len(i.ShallowReport) == 0 {
		return nil, nil
	}
	var r ShallowReport
	if err := json.Unmarshal(i.ShallowReport, &r); err != nil {
		return nil, fmt.Errorf("%w: shallow report of %s: %v", ErrValidation, i.ID, err)
	}
	return &r, nil
}

// CleanGuideline strips the section sign models like to prefix guideline
// references with, e.g. "§4.e" becomes "4.e".
func CleanGuideline(g string) string {
	return strings.ReplaceAll(g, "§", "")
}
