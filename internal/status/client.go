// Package status fetches live trading status for one account from the
// external status API and folds it into a flat snapshot.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/account-tracker/internal/circuitbreaker"
	"github.com/account-tracker/internal/logging"
	"golang.org/x/time/rate"
)

// ErrUnavailable means no usable status could be obtained for the account
// this pass. Callers classify the account with nil status fields instead of
// failing the pass; a fresh fetch happens next scheduled run.
var ErrUnavailable = errors.New("account status unavailable")

// AccountStatus is the point-in-time snapshot parsed from the API response.
// It is never persisted on its own, only folded into the bucket record.
type AccountStatus struct {
	Country         *string
	Plan            *float64
	Balance         *float64
	Equity          *float64
	OpenPnL         *float64
	GroupName       *string
	BlownUp         bool
	IsPurchaseGroup bool
}

// Client calls the status API. One request per account, paced by a shared
// limiter so a full roster pass respects the upstream rate limit.
type Client struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
}

// NewClient creates a status API client. rateDelay is the minimum spacing
// between consecutive requests (0 disables pacing).
func NewClient(url, token string, timeout, rateDelay time.Duration) *Client {
	limit := rate.Inf
	if rateDelay > 0 {
		limit = rate.Every(rateDelay)
	}
	return &Client{
		url:     url,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// SetBreaker replaces the circuit breaker guarding the API.
func (c *Client) SetBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// statusRequest is the upstream request contract. Only monetary transactions
// are needed; position lists are skipped to keep responses small.
type statusRequest struct {
	UserID                  string `json:"UserID"`
	GetOpenPositions        bool   `json:"GetOpenPositions"`
	GetPendingPositions     bool   `json:"GetPendingPositions"`
	GetClosePositions       bool   `json:"GetClosePositions"`
	GetMonetaryTransactions bool   `json:"GetMonetaryTransactions"`
}

type statusResponse struct {
	UserData struct {
		UserDetails struct {
			Country *string `json:"Country"`
		} `json:"UserDetails"`
		AccountBalance struct {
			Balance *float64 `json:"Balance"`
			Equity  *float64 `json:"Equity"`
			OpenPnL *float64 `json:"OpenPnL"`
		} `json:"AccountBalance"`
		GroupInfo struct {
			GroupName *string `json:"GroupName"`
		} `json:"GroupInfo"`
	} `json:"UserData"`
	MonetaryTransactions []monetaryTransaction `json:"MonetaryTransactions"`
}

type monetaryTransaction struct {
	Comment string   `json:"Comment"`
	Amount  *float64 `json:"Amount"`
}

// CanonicalID normalizes a roster identifier to the numeric-string form the
// API expects. Returns false for missing or non-numeric identifiers.
func CanonicalID(accountID string) (string, bool) {
	s := strings.TrimSpace(accountID)
	if s == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

// Fetch returns the account's live status, or ErrUnavailable when the
// identifier is unusable, the API answers non-200, or the response cannot be
// parsed. Unavailable is not retried within a pass.
func (c *Client) Fetch(ctx context.Context, accountID string) (*AccountStatus, error) {
	logger := logging.FromContext(ctx)

	id, ok := CanonicalID(accountID)
	if !ok {
		logger.WithField("accountId", accountID).Debug("non-numeric account id, skipping status fetch")
		return nil, ErrUnavailable
	}

	if !c.breaker.Allow() {
		logger.WithField("accountId", id).Debug("status API breaker open, skipping fetch")
		return nil, ErrUnavailable
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(statusRequest{
		UserID:                  id,
		GetMonetaryTransactions: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.Failure()
		logger.WithField("accountId", id).WithError(err).Warn("status request failed")
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	// 4xx answers still prove the API is up; only transport errors and 5xx
	// count against the breaker.
	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(map[string]interface{}{
			"accountId": id,
			"status":    resp.StatusCode,
		}).Warn("status API returned non-200")
		return nil, ErrUnavailable
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.WithField("accountId", id).WithError(err).Warn("failed to decode status response")
		return nil, ErrUnavailable
	}

	return fold(&parsed), nil
}

// fold flattens the nested response into an AccountStatus.
func fold(resp *statusResponse) *AccountStatus {
	st := &AccountStatus{
		Country:   resp.UserData.UserDetails.Country,
		Balance:   resp.UserData.AccountBalance.Balance,
		Equity:    resp.UserData.AccountBalance.Equity,
		OpenPnL:   resp.UserData.AccountBalance.OpenPnL,
		GroupName: resp.UserData.GroupInfo.GroupName,
	}

	if st.GroupName != nil {
		st.IsPurchaseGroup = strings.Contains(strings.ToLower(*st.GroupName), "purchase")
	}

	planSet := false
	for _, txn := range resp.MonetaryTransactions {
		comment := strings.ToLower(txn.Comment)
		if strings.Contains(comment, "zero balance") {
			st.BlownUp = true
		}
		// First "initial balance" transaction wins as the plan value, even
		// when its amount is missing.
		if !planSet && strings.HasPrefix(comment, "initial balance") {
			st.Plan = txn.Amount
			planSet = true
		}
	}

	return st
}
