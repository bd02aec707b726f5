// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/models"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid envelope JSON: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestRespondWrapsDataInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)

	respond(rec, req, http.StatusOK, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Errorf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type: %s", ct)
	}

	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Error != nil {
		t.Errorf("unexpected error: %+v", resp.Error)
	}
	if resp.Meta.Timestamp.IsZero() {
		t.Error("expected meta timestamp set")
	}
}

func TestRespondErrorCarriesCodeAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/people", nil)

	respondError(rec, req, http.StatusBadRequest, models.ErrCodeValidation, "Invalid email", map[string]interface{}{
		"field": "email",
	})

	resp := decodeEnvelope(t, rec)
	if resp.Success {
		t.Error("expected success false")
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeValidation {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Error.Details["field"] != "email" {
		t.Errorf("unexpected details: %+v", resp.Error.Details)
	}
}

func TestMapErrorTranslatesDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{database.ErrNotFound, http.StatusNotFound, models.ErrCodeNotFound},
		{fmt.Errorf("%w: code taken", database.ErrConflict), http.StatusConflict, models.ErrCodeConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v2/people/x", nil)
		mapError(rec, req, tc.err)

		if rec.Code != tc.status {
			t.Errorf("%v: expected status %d, got %d", tc.err, tc.status, rec.Code)
		}
		resp := decodeEnvelope(t, rec)
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Errorf("%v: unexpected error %+v", tc.err, resp.Error)
		}
	}
}

func TestMapErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/people", nil)

	mapError(rec, req, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error detail leaked to client")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/people", strings.NewReader("{not json"))

	var dst models.PersonCreateRequest
	if decode(rec, req, &dst) {
		t.Fatal("expected decode failure")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unexpected status: %d", rec.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/people", strings.NewReader(`{"bogus": true}`))

	var dst models.CheckOutRequest
	if decode(rec, req, &dst) {
		t.Fatal("expected decode failure")
	}
}

func TestDecodeValidatesStruct(t *testing.T) {
	rec := httptest.NewRecorder()
	body := `{"code":"P1","name":"Dana","email":"not-an-email","role":"staff","site":"hq"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v2/people", strings.NewReader(body))

	var dst models.PersonCreateRequest
	if decode(rec, req, &dst) {
		t.Fatal("expected validation failure")
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != models.ErrCodeValidation {
		t.Errorf("unexpected error: %+v", resp.Error)
	}
}
