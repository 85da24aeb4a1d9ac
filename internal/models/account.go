// Package models defines the core data types shared across the tracker.
package models

import "time"

// Account is one roster entry from the CRM store. Immutable within a pass.
type Account struct {
	AccountID    string  `json:"accountId" db:"account_id"`
	CustomerName *string `json:"customerName,omitempty" db:"customer_name"`
}

// Bucket is one of the four mutually exclusive classification outcomes.
type Bucket string

const (
	BucketActive    Bucket = "active"
	BucketBlown     Bucket = "blown"
	BucketPurchases Bucket = "purchases"
	BucketPlan50k   Bucket = "plan50k"
)

// AllBuckets returns every bucket in a fixed order.
func AllBuckets() []Bucket {
	return []Bucket{BucketActive, BucketBlown, BucketPurchases, BucketPlan50k}
}

// BucketRecord is the row persisted into a bucket table. GroupName is only
// populated for purchases records, PctChange only for active records.
type BucketRecord struct {
	AccountID    string    `json:"accountId" db:"account_id"`
	CustomerName *string   `json:"customerName,omitempty" db:"customer_name"`
	Country      *string   `json:"country,omitempty" db:"country"`
	Plan         *float64  `json:"plan,omitempty" db:"plan"`
	Balance      *float64  `json:"balance,omitempty" db:"balance"`
	Equity       *float64  `json:"equity,omitempty" db:"equity"`
	OpenPnL      *float64  `json:"openPnl,omitempty" db:"open_pnl"`
	GroupName    *string   `json:"groupName,omitempty" db:"group_name"`
	PctChange    *float64  `json:"pctChange,omitempty" db:"pct_change"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// BaselineRecord is the per-account equity snapshot taken at the weekly
// reseed. Overwritten on every subsequent reseed, never appended.
type BaselineRecord struct {
	AccountID      string    `json:"accountId" db:"account_id"`
	BaselineEquity float64   `json:"baselineEquity" db:"baseline_equity"`
	BaselineAt     time.Time `json:"baselineAt" db:"baseline_at"`
}
