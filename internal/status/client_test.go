package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/account-tracker/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, 0), srv
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "plain integer", in: "123456", want: "123456", ok: true},
		{name: "surrounding whitespace", in: " 123456 ", want: "123456", ok: true},
		{name: "float form truncates", in: "123456.0", want: "123456", ok: true},
		{name: "empty", in: "", ok: false},
		{name: "non-numeric", in: "ACC-99", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalID(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFetch_ParsesNestedResponse(t *testing.T) {
	var gotReq statusRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"UserData": map[string]interface{}{
				"UserDetails":    map[string]interface{}{"Country": "Germany"},
				"AccountBalance": map[string]interface{}{"Balance": 10000.0, "Equity": 10500.0, "OpenPnL": 500.0},
				"GroupInfo":      map[string]interface{}{"GroupName": "Standard-A"},
			},
			"MonetaryTransactions": []map[string]interface{}{
				{"Comment": "Initial Balance deposit", "Amount": 10000.0},
				{"Comment": "Initial balance correction", "Amount": 25000.0},
			},
		})
	})

	st, err := client.Fetch(context.Background(), "123456")
	require.NoError(t, err)

	assert.Equal(t, "123456", gotReq.UserID)
	assert.True(t, gotReq.GetMonetaryTransactions)
	assert.False(t, gotReq.GetOpenPositions)

	require.NotNil(t, st.Country)
	assert.Equal(t, "Germany", *st.Country)
	require.NotNil(t, st.Equity)
	assert.Equal(t, 10500.0, *st.Equity)
	require.NotNil(t, st.Plan)
	assert.Equal(t, 10000.0, *st.Plan, "first initial-balance transaction wins")
	assert.False(t, st.BlownUp)
	assert.False(t, st.IsPurchaseGroup)
}

func TestFetch_BlownUpAndPurchaseFlags(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"UserData": map[string]interface{}{
				"GroupInfo": map[string]interface{}{"GroupName": "EU-Purchase-Group"},
			},
			"MonetaryTransactions": []map[string]interface{}{
				{"Comment": "Deposit", "Amount": 100.0},
				{"Comment": "Account reset to ZERO BALANCE", "Amount": 0.0},
			},
		})
	})

	st, err := client.Fetch(context.Background(), "42")
	require.NoError(t, err)

	assert.True(t, st.BlownUp, "zero balance comment is matched case-insensitively")
	assert.True(t, st.IsPurchaseGroup)
	assert.Nil(t, st.Plan)
}

func TestFetch_NonNumericIDSkipsNetworkCall(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.Fetch(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, calls)
}

func TestFetch_Non200IsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Fetch(context.Background(), "123")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_MalformedBodyIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Fetch(context.Background(), "123")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_OpenBreakerSkipsNetworkCall(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.SetBreaker(circuitbreaker.New(circuitbreaker.Config{Threshold: 1, Cooldown: time.Hour}))

	_, err := client.Fetch(context.Background(), "123")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls)

	_, err = client.Fetch(context.Background(), "124")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls, "open breaker short-circuits before the network")
}

func TestFetch_ClientErrorDoesNotTripBreaker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	breaker := circuitbreaker.New(circuitbreaker.Config{Threshold: 1, Cooldown: time.Hour})
	client.SetBreaker(breaker)

	_, err := client.Fetch(context.Background(), "123")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State(), "4xx proves the API is up")
}

func TestFetch_MissingFieldsDefaultToNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	st, err := client.Fetch(context.Background(), "123")
	require.NoError(t, err)

	assert.Nil(t, st.Country)
	assert.Nil(t, st.Balance)
	assert.Nil(t, st.Equity)
	assert.Nil(t, st.OpenPnL)
	assert.Nil(t, st.GroupName)
	assert.Nil(t, st.Plan)
	assert.False(t, st.BlownUp)
	assert.False(t, st.IsPurchaseGroup)
}
