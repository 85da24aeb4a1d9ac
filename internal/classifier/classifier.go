// Package classifier decides which bucket an account belongs to. The rules
// are kept as an ordered list so priority can be tested in isolation: the
// first matching rule wins, and an account that matches nothing is Active.
package classifier

import (
	"math"
	"time"

	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/status"
)

// plan50kTolerance absorbs float noise in plan amounts reported by the API.
const plan50kTolerance = 1e-6

// Rule matches one bucket from a status snapshot. Match is never called with
// a nil status; an unavailable status always classifies Active.
type Rule struct {
	Name   string
	Bucket models.Bucket
	Match  func(st *status.AccountStatus) bool
}

// Rules returns the classification rules in priority order.
func Rules() []Rule {
	return []Rule{
		{
			Name:   "blown-up",
			Bucket: models.BucketBlown,
			Match:  func(st *status.AccountStatus) bool { return st.BlownUp },
		},
		{
			Name:   "purchase-group",
			Bucket: models.BucketPurchases,
			Match:  func(st *status.AccountStatus) bool { return st.IsPurchaseGroup },
		},
		{
			Name:   "plan-50k",
			Bucket: models.BucketPlan50k,
			Match: func(st *status.AccountStatus) bool {
				return st.Plan != nil && math.Abs(*st.Plan-50000.0) < plan50kTolerance
			},
		},
	}
}

// Classify evaluates the rules for one account and builds the record to
// persist. baselineEquity is the account's baseline from the current weekly
// cycle, or nil when none exists; it only affects Active records. A nil
// status (unavailable this pass) leaves all status-derived fields nil and
// classifies the account Active.
func Classify(acct models.Account, st *status.AccountStatus, baselineEquity *float64, now time.Time) (models.Bucket, models.BucketRecord) {
	rec := models.BucketRecord{
		AccountID:    acct.AccountID,
		CustomerName: acct.CustomerName,
		UpdatedAt:    now,
	}
	if st != nil {
		rec.Country = st.Country
		rec.Plan = st.Plan
		rec.Balance = st.Balance
		rec.Equity = st.Equity
		rec.OpenPnL = st.OpenPnL
	}

	if st != nil {
		for _, rule := range Rules() {
			if rule.Match(st) {
				if rule.Bucket == models.BucketPurchases {
					rec.GroupName = st.GroupName
				}
				return rule.Bucket, rec
			}
		}
	}

	rec.PctChange = PercentChange(rec.Equity, baselineEquity)
	return models.BucketActive, rec
}

// PercentChange computes (equity-baseline)/baseline*100, or nil when the
// baseline is missing or zero or the equity is missing.
func PercentChange(equity, baseline *float64) *float64 {
	if equity == nil || baseline == nil || *baseline == 0 {
		return nil
	}
	pct := (*equity - *baseline) / *baseline * 100.0
	return &pct
}
