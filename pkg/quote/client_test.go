package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimApps/ether/pkg/types"
)

func TestGetQuotation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/quotations", r.URL.Path)
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var req quotationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "50", req.Amount)

		_ = json.NewEncoder(w).Encode(types.Quotation{
			ID:        "q-1",
			Amount:    "50",
			Fee:       "0.5",
			Challenge: "ch-1",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", time.Second, 3)
	quotation, err := client.GetQuotation(context.Background(), "50")

	require.NoError(t, err)
	assert.Equal(t, "q-1", quotation.ID)
	assert.Equal(t, "ch-1", quotation.Challenge)
}

func TestGetQuotation_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(types.Quotation{ID: "q-1", Challenge: "ch-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 3)
	quotation, err := client.GetQuotation(context.Background(), "50")

	require.NoError(t, err)
	assert.Equal(t, "q-1", quotation.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetQuotation_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 2)
	_, err := client.GetQuotation(context.Background(), "50")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGetQuotation_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad amount", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 3)
	_, err := client.GetQuotation(context.Background(), "50")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load(), "a deterministic rejection must not be retried")
}

func TestSubmitWithdrawal_Accepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/withdrawals", r.URL.Path)

		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "q-1", req.QuotationID)
		assert.Equal(t, "sig-1", req.Signature)

		_ = json.NewEncoder(w).Encode(submitResponse{Accepted: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 1)
	accepted, err := client.SubmitWithdrawal(context.Background(), "q-1", "sig-1")

	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestSubmitWithdrawal_CleanRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Accepted: false})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 1)
	accepted, err := client.SubmitWithdrawal(context.Background(), "q-1", "sig-1")

	// A clean rejection is not a transport error.
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestSubmitWithdrawal_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, 1)
	_, err := client.SubmitWithdrawal(context.Background(), "q-1", "sig-1")

	require.Error(t, err)
}
