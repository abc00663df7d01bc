package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimApps/ether/internal/service"
	"github.com/KimApps/ether/pkg/approval"
	"github.com/KimApps/ether/pkg/coordinator"
	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/types"
	"github.com/KimApps/ether/pkg/withdraw"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubQuoter struct{}

func (stubQuoter) GetQuotation(ctx context.Context, amount string) (types.Quotation, error) {
	return types.Quotation{ID: "q-1", Amount: amount, Challenge: "ch-1"}, nil
}

type stubSubmitter struct{}

func (stubSubmitter) SubmitWithdrawal(ctx context.Context, quotationID, signature string) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (*Server, *withdraw.Orchestrator) {
	t.Helper()
	broker := coordinator.New()
	orch := withdraw.New(stubQuoter{}, stubSubmitter{}, broker, reporting.NewLogReporter())
	dispatcher := service.NewDispatcher(broker, func() *approval.Session {
		t.Fatal("no session should be created in this test")
		return nil
	})
	audit := service.NewAuditConsumer(nil)
	return NewServer(context.Background(), orch, dispatcher, NewEventLog(), audit, "development"), orch
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SetAmountSanitizes(t *testing.T) {
	s, orch := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/withdrawals/amount", `{"amount":"12a.3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12.3", orch.State().Amount)
	assert.Contains(t, rec.Body.String(), `"amount":"12.3"`)
}

func TestServer_SetAmountBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/withdrawals/amount", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_WithdrawAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/withdrawals", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_WithdrawState(t *testing.T) {
	s, orch := newTestServer(t)
	orch.SetAmount("42")

	rec := doRequest(t, s, http.MethodGet, "/v1/withdrawals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":"42"`)
}

func TestServer_SigningEndpointsWithoutSession(t *testing.T) {
	s, _ := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/signing"},
		{http.MethodPost, "/v1/signing/local"},
		{http.MethodPost, "/v1/signing/cancel"},
		{http.MethodPost, "/v1/signing/connect"},
		{http.MethodPost, "/v1/signing/approve"},
		{http.MethodPost, "/v1/signing/reject"},
	} {
		rec := doRequest(t, s, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_SigningEventsEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/signing/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events"`)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
