package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthledger/core/audit"
	"healthledger/core/auth"
	"healthledger/core/errs"
	"healthledger/core/network"
	"healthledger/core/participant"
	"healthledger/core/storage"
)

var testSecret = []byte("test-secret-that-is-long-enough")

type harness struct {
	t      *testing.T
	srv    *Server
	net    *network.Network
	issuer *auth.Issuer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	n, err := network.New(network.WithAuditLogger(&audit.Recorder{}))
	require.NoError(t, err)

	must := func(p participant.Participant, err error) participant.Participant {
		require.NoError(t, err)
		return p
	}
	require.NoError(t, n.AddParticipant(must(participant.NewAdmin("a1", "Admin", false))))
	require.NoError(t, n.RegisterParticipant("a1", must(participant.NewPatient("p1", "Ada", participant.PatientIndoor))))
	require.NoError(t, n.RegisterParticipant("a1", must(participant.NewMedicalEntity("d1", "Dr. Grey", "Surgeon", "General"))))
	require.NoError(t, n.RegisterParticipant("a1", must(participant.NewMedicalEntity("d2", "Dr. House", "Diagnostician", "Internal"))))
	require.NoError(t, n.RegisterParticipant("a1", must(participant.NewEmergencyResponder("r1", "Sam", "Paramedic"))))

	authz := &auth.Authorizer{
		Verifier:    &auth.Verifier{KeyProvider: auth.StaticKeyProvider{Secret: testSecret}, Issuer: "healthledger"},
		AuditLogger: &audit.Recorder{},
	}
	return &harness{
		t:      t,
		srv:    NewServer(n, authz, ":0", opts...),
		net:    n,
		issuer: auth.NewIssuer(testSecret, "healthledger", time.Hour),
	}
}

func (h *harness) do(method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		token, err := h.issuer.Issue(actor, "")
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func (h *harness) uploadPHI() {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/api/v1/phi", "p1", map[string]interface{}{
		"patient_id":         "p1",
		"authorizing_entity": "d1",
		"demographics": map[string]string{
			"name":          "Ada Lovelace",
			"gender":        "female",
			"date_of_birth": "1985-12-10",
		},
	})
	require.Equal(h.t, http.StatusCreated, rr.Code, rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&errs.PermissionError{Actor: "d2"}, http.StatusForbidden},
		{errs.NotFound("phi", "p9_PHI"), http.StatusNotFound},
		{&errs.ParseError{Field: "pulse", Raw: "fast"}, http.StatusBadRequest},
		{errs.InvalidState("upload phi", "p1_PHI", "exists"), http.StatusConflict},
		{&errs.IntegrityError{BlockIndex: 2}, http.StatusServiceUnavailable},
		{&errs.ValidationError{Subject: "phi"}, http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, "%v", tc.err)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/phi/p1_PHI", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPHIRoundTripOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()

	rr := h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec struct {
		AuthorizedEntities []string `json:"authorizedEntities"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, []string{"d1", "p1"}, rec.AuthorizedEntities)

	rr = h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "d2", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "permission_denied", decodeError(t, rr).Error)

	rr = h.do(http.MethodGet, "/api/v1/phi/p9_PHI", "d1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(http.MethodPost, "/api/v1/phi/p1_PHI/grants", "p1", map[string]string{"entity": "d2"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "d2", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodDelete, "/api/v1/phi/p1_PHI/grants/d2", "p1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(http.MethodPatch, "/api/v1/phi/p1_PHI", "a1", map[string]string{"contact": "555-0100"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = h.do(http.MethodPatch, "/api/v1/phi/p1_PHI", "a1", map[string]string{"shoe_size": "9"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(http.MethodPost, "/api/v1/phi/p1_PHI/transfer", "d1", map[string]string{"to": "d2"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "d1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDuplicatePHIConflicts(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()
	rr := h.do(http.MethodPost, "/api/v1/phi", "p1", map[string]interface{}{
		"patient_id":         "p1",
		"authorizing_entity": "d1",
		"demographics":       map[string]string{"name": "Ada", "gender": "f", "date_of_birth": "1985-12-10"},
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestReadingsAndAnalysis(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()

	rr := h.do(http.MethodPost, "/api/v1/patients/p1/readings", "p1", map[string]string{
		"captured_at":      "2025-03-01T09:00:00Z",
		"blood_pressure":   "180/110",
		"body_temperature": "101.5°F",
		"pulse":            "120 bpm",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = h.do(http.MethodPost, "/api/v1/patients/p1/readings", "p1", map[string]string{"patient_id": "p2", "pulse": "70"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(http.MethodGet, "/api/v1/patients/p1/readings", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var readings []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &readings))
	assert.Len(t, readings, 1)

	rr = h.do(http.MethodPost, "/api/v1/patients/p1/analysis", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var analysis network.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &analysis))
	assert.Len(t, analysis.Warnings, 4)
	assert.NotEmpty(t, analysis.TxID)
}

func TestReadingsWindowQuery(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()
	for _, at := range []string{"2025-03-01 08:00", "2025-03-01 09:00", "2025-03-01 10:00"} {
		rr := h.do(http.MethodPost, "/api/v1/patients/p1/readings", "p1", map[string]string{"captured_at": at, "pulse": "70"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := h.do(http.MethodGet, "/api/v1/patients/p1/readings?from=2025-03-01T09:00:00Z", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var readings []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &readings))
	assert.Len(t, readings, 2)

	rr = h.do(http.MethodGet, "/api/v1/patients/p1/readings?from=2025-03-01+08:30&to=2025-03-01+09:30", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &readings))
	assert.Len(t, readings, 1)

	rr = h.do(http.MethodGet, "/api/v1/patients/p1/readings?from=yesterday-ish", "d1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(http.MethodGet, "/api/v1/patients/p1/readings?from=2025-03-01T10:00:00Z&to=2025-03-01T09:00:00Z", "d1", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestEmergencyOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()

	rr := h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "r1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(http.MethodPost, "/api/v1/patients/p1/emergency", "d1", map[string][]string{"responders": {"r1"}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "r1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodGet, "/api/v1/patients/p1/emergency", "p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var grants []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grants))
	assert.Len(t, grants, 1)

	rr = h.do(http.MethodPost, "/api/v1/patients/p1/emergency", "d1", map[string][]string{"responders": {"r1"}})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = h.do(http.MethodDelete, "/api/v1/patients/p1/emergency", "d1", map[string][]string{"responders": {"r1"}})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = h.do(http.MethodGet, "/api/v1/phi/p1_PHI", "r1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	h := newHarness(t)
	h.uploadPHI()

	rr := h.do(http.MethodPost, "/api/v1/ledger/mine", "d1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(http.MethodPost, "/api/v1/ledger/mine", "a1", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var summary storage.BlockSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, uint64(1), summary.Index)

	rr = h.do(http.MethodPost, "/api/v1/ledger/verify", "d1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodGet, "/api/v1/ledger/history", "p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var txs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "UploadPHI", txs[0]["kind"])

	rr = h.do(http.MethodGet, "/api/v1/ledger/history?participant=a1", "p1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = h.do(http.MethodGet, "/api/v1/ledger/history?participant=", "a1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	txID, _ := txs[0]["tx_id"].(string)
	rr = h.do(http.MethodGet, "/api/v1/ledger/tx/"+txID, "p1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var inspection txInspection
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inspection))
	assert.Equal(t, uint64(1), inspection.BlockIndex)
	assert.False(t, inspection.Signed)

	rr = h.do(http.MethodGet, "/api/v1/ledger/blocks?limit=5", "p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var blocks []storage.BlockSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(1), blocks[0].Index)

	rr = h.do(http.MethodGet, "/api/v1/ledger/blocks?limit=zero", "p1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndStatus(t *testing.T) {
	h := newHarness(t, WithNodeName("ward-7"))

	rr := h.do(http.MethodGet, "/health/liveness", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = h.do(http.MethodGet, "/health/readiness", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "initializing", st.Status)
	assert.Equal(t, "ward-7", st.Node)
	assert.Equal(t, 5, st.Participants)

	rr = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthledger_http_requests_total")
}
