package request

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"traders-server/internal/shared/errors"
	"traders-server/internal/shared/response"
)

const maxBodyBytes = 1 << 20 // 1 MB

// DecodeJSON reads a size-limited JSON body into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.WrapValidation("invalid JSON in request body", err)
	}
	return nil
}

// PathID parses a positive integer path value.
func PathID(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, errors.Validationf("%s is required", name)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.Validationf("invalid %s format", name)
	}
	return id, nil
}

// Allow writes a 405 and returns false when r does not use method.
func Allow(w http.ResponseWriter, r *http.Request, logger *slog.Logger, method string) bool {
	if r.Method != method {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return false
	}
	return true
}
