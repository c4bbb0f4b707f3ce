/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response == nil {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(s.Response); err != nil {
		return nil, err
	}
	return resp, nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	config.MockConfig(&config.Configuration{})
	service := tally.NewTally(database.NewMemoryDataSource(), tally.Options{})
	api := NewAPI(service)
	require.NotNil(t, api)
	return api.Router()
}

func body(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return strings.NewReader(string(raw))
}

func TestLedgerLifecycle(t *testing.T) {
	router := setupRouter(t)
	userID := gofakeit.UUID()
	base := "/ledgers/" + userID

	var ledger model.Ledger
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: base, Response: &ledger})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, ledger.UserID)

	resp, err = SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPost, Route: base + "/transactions",
		Payload:  body(t, map[string]interface{}{"type": "IN", "amount": 1000, "reason": "Salary"}),
		Response: &ledger,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPost, Route: base + "/transactions",
		Payload:  body(t, map[string]interface{}{"type": "out", "amount": "200", "reason": "Food"}),
		Response: &ledger,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "800", ledger.Balance.String())
	require.Len(t, ledger.History, 2)
	food := ledger.History[1].TransactionID

	resp, err = SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPut, Route: base + "/transactions/" + food,
		Payload:  body(t, map[string]interface{}{"amount": "300", "reason": "Food"}),
		Response: &ledger,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "700", ledger.Balance.String())

	var transactions []model.IndexedTransaction
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: base + "/transactions?type=OUT", Response: &transactions})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, transactions, 1)
	assert.Equal(t, 1, transactions[0].Index)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodDelete, Route: base + "/history/0?transaction_id=" + ledger.History[0].TransactionID, Response: &ledger})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "-300", ledger.Balance.String())

	var report model.Report
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: base + "/report", Response: &report})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, report.In.NoData)
	require.Len(t, report.Out.Reasons, 1)
	assert.Regexp(t, `^rgb\(\d+, \d+, \d+\)$`, report.Out.Reasons[0].Color)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: base + "/reset", Response: &ledger})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, ledger.History)
	assert.True(t, ledger.Balance.IsZero())
}

func TestRecordTransactionBadRequests(t *testing.T) {
	router := setupRouter(t)
	route := "/ledgers/" + gofakeit.UUID() + "/transactions"

	payloads := []string{
		`{"type":"IN","amount":0,"reason":"Gift"}`,
		`{"type":"IN","amount":"abc","reason":"Gift"}`,
		`{"type":"SIDEWAYS","amount":5,"reason":"Gift"}`,
		`{"type":"OUT","amount":5,"reason":""}`,
		`not json`,
	}
	for _, payload := range payloads {
		resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: route, Payload: strings.NewReader(payload)})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Code, payload)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	router := setupRouter(t)
	userID := gofakeit.UUID()
	base := "/ledgers/" + userID

	var errResp map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: base, Response: &errResp})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", errResp["code"])

	_, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: base})
	require.NoError(t, err)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodDelete, Route: base + "/transactions/txn_missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodDelete, Route: base + "/history/-1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodDelete, Route: base + "/history/first"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPut, Route: base + "/history/4",
		Payload: body(t, map[string]interface{}{"amount": "1", "reason": "Gift"}),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: base + "/transactions?type=maybe"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupRouter(t)

	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/metrics"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "tally_http_requests_total")
}
