package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"familydose/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.NotFound, http.StatusNotFound},
		{apperr.Conflict, http.StatusConflict},
		{apperr.Forbidden, http.StatusForbidden},
		{apperr.ResourceExhausted, http.StatusInsufficientStorage},
		{apperr.InvalidArgument, http.StatusBadRequest},
		{apperr.Busy, http.StatusServiceUnavailable},
		{apperr.Unknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := StatusFor(tt.kind); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestRespondWithErrorWritesKindAndReason(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/slots", nil)

	respondWithError(recorder, zap.NewNop(), req, apperr.Exhaustedf("all 6 dispenser slots are in use"))

	if recorder.Code != http.StatusInsufficientStorage {
		t.Fatalf("expected status 507, got %d", recorder.Code)
	}
	var body errorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Kind != apperr.ResourceExhausted.String() {
		t.Errorf("kind = %q, want %q", body.Kind, apperr.ResourceExhausted.String())
	}
	if !strings.Contains(body.Error, "slots are in use") {
		t.Errorf("error = %q, want the reason", body.Error)
	}
}

func TestRespondWithErrorHidesInternalErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/household", nil)

	respondWithError(recorder, zap.New(core), req, errors.New("boom: disk on fire"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", recorder.Code)
	}
	if strings.Contains(recorder.Body.String(), "boom") {
		t.Errorf("internal error leaked to client: %s", recorder.Body.String())
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["path"] != "/api/household" {
		t.Errorf("logged path = %v", entry.ContextMap()["path"])
	}
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/catalog", strings.NewReader("{not json"))

	var v map[string]interface{}
	err := decodeJSON(recorder, req, &v)
	if apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("decodeJSON error kind = %s, want InvalidArgument", apperr.KindOf(err))
	}
}

func TestRespondUnauthorized(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondUnauthorized(recorder)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
	if recorder.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}
