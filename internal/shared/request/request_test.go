package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"traders-server/internal/shared/errors"
)

func TestPathID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"missing", "", 0, true},
		{"not a number", "abc", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/planets/x", nil)
			r.SetPathValue("id", tc.raw)

			got, err := PathID(r, "id")
			if tc.wantErr {
				if errors.GetType(err) != errors.ErrorTypeValidation {
					t.Fatalf("error = %v, want validation", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("PathID = %d, %v; want %d", got, err, tc.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Amount int64 `json:"amount"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"amount":5}`, false},
		{"unknown field", `{"amount":5,"fee":0}`, true},
		{"overflowing number", `{"amount":10000000000000000000}`, true},
		{"truncated", `{"amount":`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.payload))
			var dst body
			err := DecodeJSON(httptest.NewRecorder(), r, &dst)
			if tc.wantErr {
				if errors.GetType(err) != errors.ErrorTypeValidation {
					t.Errorf("error = %v, want validation", err)
				}
				return
			}
			if err != nil || dst.Amount != 5 {
				t.Errorf("decoded %+v, %v", dst, err)
			}
		})
	}
}

func TestAllow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	if Allow(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, http.MethodPost) {
		t.Fatal("GET allowed on a POST endpoint")
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}

	if !Allow(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), logger, http.MethodPost) {
		t.Error("POST rejected on a POST endpoint")
	}
}
