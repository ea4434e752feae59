package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"healthledger/core/errs"
)

type errorBody struct {
	Error  string      `json:"error"`
	Detail string      `json:"detail,omitempty"`
	Cause  interface{} `json:"cause,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrPermission):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrParse):
		return http.StatusBadRequest, "parse_error"
	case errors.Is(err, errs.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, errs.ErrIntegrity):
		return http.StatusServiceUnavailable, "integrity_violation"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err with its typed details when it has any.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: code, Detail: err.Error()}

	var (
		perr *errs.PermissionError
		nerr *errs.NotFoundError
		verr *errs.ValidationError
		ierr *errs.IntegrityError
	)
	switch {
	case errors.As(err, &perr):
		body.Cause = perr
	case errors.As(err, &nerr):
		body.Cause = nerr
	case errors.As(err, &verr):
		body.Cause = verr
	case errors.As(err, &ierr):
		body.Cause = ierr
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &errs.ValidationError{Subject: "request body", Problems: []string{err.Error()}}
	}
	return nil
}
