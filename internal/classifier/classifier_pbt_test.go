package classifier

import (
	"testing"
	"time"

	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/status"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genStatus builds arbitrary status snapshots covering every rule signal.
func genStatus() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),                      // blown up
		gen.Bool(),                      // purchase group
		gen.Bool(),                      // plan present
		gen.Float64Range(0, 200000),     // plan value
		gen.Float64Range(-1000, 100000), // equity
	).Map(func(vals []interface{}) *status.AccountStatus {
		st := &status.AccountStatus{
			BlownUp:         vals[0].(bool),
			IsPurchaseGroup: vals[1].(bool),
		}
		if vals[2].(bool) {
			plan := vals[3].(float64)
			st.Plan = &plan
		}
		equity := vals[4].(float64)
		st.Equity = &equity
		return st
	})
}

func TestClassify_PriorityProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	acct := models.Account{AccountID: "1"}
	now := time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)

	properties.Property("blown up always lands in the blown bucket", prop.ForAll(
		func(st *status.AccountStatus) bool {
			st.BlownUp = true
			bucket, _ := Classify(acct, st, nil, now)
			return bucket == models.BucketBlown
		},
		genStatus(),
	))

	properties.Property("classification is deterministic", prop.ForAll(
		func(st *status.AccountStatus) bool {
			first, _ := Classify(acct, st, nil, now)
			second, _ := Classify(acct, st, nil, now)
			return first == second
		},
		genStatus(),
	))

	properties.Property("every status maps to exactly one known bucket", prop.ForAll(
		func(st *status.AccountStatus) bool {
			bucket, _ := Classify(acct, st, nil, now)
			for _, b := range models.AllBuckets() {
				if bucket == b {
					return true
				}
			}
			return false
		},
		genStatus(),
	))

	properties.Property("pct change appears only on active records", prop.ForAll(
		func(st *status.AccountStatus, baseline float64) bool {
			bucket, rec := Classify(acct, st, &baseline, now)
			if bucket != models.BucketActive {
				return rec.PctChange == nil
			}
			return true
		},
		genStatus(),
		gen.Float64Range(1, 100000),
	))

	properties.TestingRun(t)
}
