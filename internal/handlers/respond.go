package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stayreal/companion/internal/archive"
	"github.com/stayreal/companion/internal/balances"
	"github.com/stayreal/companion/internal/logging"
	"github.com/stayreal/companion/internal/repositories"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondCommandError maps a command failure onto a status code.
func respondCommandError(ctx context.Context, w http.ResponseWriter, command string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repositories.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, archive.ErrNoSaveDirectory),
		errors.Is(err, archive.ErrSaveDirectoryMissing),
		errors.Is(err, balances.ErrNoFolder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, archive.ErrIngestorClosed),
		errors.Is(err, archive.ErrSettingsUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(ctx).Error("command failed", "command", command, "error", err)
		respondError(ctx, w, status, fmt.Sprintf("failed to %s", command))
		return
	}
	respondError(ctx, w, status, err.Error())
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return validationMessage(invalid)
		}
		return err
	}
	return nil
}

func validationMessage(errs validator.ValidationErrors) error {
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New("invalid request: " + strings.Join(fields, "; "))
}
