package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/storage"
)

// Per-bucket listing limits. The active table is the big one; the other
// buckets stay small and get tighter defaults.
const maxLimit = 5000

var defaultLimits = map[models.Bucket]int{
	models.BucketActive:    500,
	models.BucketBlown:     200,
	models.BucketPurchases: 200,
	models.BucketPlan50k:   100,
}

var limitParams = map[models.Bucket]string{
	models.BucketActive:    "limit_active",
	models.BucketBlown:     "limit_blown",
	models.BucketPurchases: "limit_purchases",
	models.BucketPlan50k:   "limit_plan50k",
}

// DataLatestResponse is the full dashboard payload: every bucket table plus
// counts and the latest reseed timestamp.
type DataLatestResponse struct {
	Counts     *storage.TableCounts  `json:"counts"`
	BaselineAt *time.Time            `json:"baselineAt"`
	Active     []models.BucketRecord `json:"active"`
	Blown      []models.BucketRecord `json:"blown"`
	Purchases  []models.BucketRecord `json:"purchases"`
	Plan50k    []models.BucketRecord `json:"plan50k"`
}

// parseLimit reads one limit query parameter, applying the default and cap.
func parseLimit(r *http.Request, bucket models.Bucket) (int, error) {
	raw := r.URL.Query().Get(limitParams[bucket])
	if raw == "" {
		return defaultLimits[bucket], nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", limitParams[bucket])
	}
	if parsed > maxLimit {
		parsed = maxLimit
	}
	return parsed, nil
}

// handleDataLatest returns the latest persisted state of all four buckets.
func (s *Server) handleDataLatest(w http.ResponseWriter, r *http.Request) {
	resp := DataLatestResponse{}

	dests := map[models.Bucket]*[]models.BucketRecord{
		models.BucketActive:    &resp.Active,
		models.BucketBlown:     &resp.Blown,
		models.BucketPurchases: &resp.Purchases,
		models.BucketPlan50k:   &resp.Plan50k,
	}

	for _, bucket := range models.AllBuckets() {
		limit, err := parseLimit(r, bucket)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}

		records, err := s.buckets.List(r.Context(), bucket, limit)
		if err != nil {
			logging.L().WithError(err).WithField("bucket", bucket).Error("failed to list bucket")
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read bucket records")
			return
		}
		if records == nil {
			records = []models.BucketRecord{}
		}
		*dests[bucket] = records
	}

	counts, err := s.buckets.Counts(r.Context())
	if err != nil {
		logging.L().WithError(err).Error("failed to count buckets")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read bucket counts")
		return
	}

	baselineCount, err := s.baselines.Count(r.Context())
	if err != nil {
		logging.L().WithError(err).Error("failed to count baselines")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read baseline metadata")
		return
	}
	counts.Baseline = baselineCount
	resp.Counts = counts

	latest, err := s.baselines.LatestBaselineAt(r.Context())
	if err != nil {
		logging.L().WithError(err).Error("failed to read latest baseline")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read baseline metadata")
		return
	}
	resp.BaselineAt = latest

	respondJSON(w, http.StatusOK, resp)
}

// handleStatus returns the most recent worker pass summary.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.Latest(r.Context())
	if err != nil {
		logging.L().WithError(err).Error("failed to read latest run summary")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read run status")
		return
	}
	if summary == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No pass has completed yet")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
