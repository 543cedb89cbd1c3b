package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/awadmin/awadmin-api-go/internal/auth"
	errordefs "github.com/awadmin/awadmin-api-go/internal/errors"
	"github.com/awadmin/awadmin-api-go/internal/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// authError maps an auth service failure to an API error.
func (m *Mux) authError(r *http.Request, err error) *errordefs.Error {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return errordefs.NewWithDetails(errordefs.API_VALIDATION, "request validation failed", "", verr.Fields)
	case errors.Is(err, auth.ErrUserExists):
		return errordefs.NewWithDetails(errordefs.API_VALIDATION, "request validation failed", "",
			[]auth.FieldError{{Field: "username", Message: "A user with that username already exists."}})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return errordefs.New(errordefs.API_AUTHN, "Invalid credentials", "")
	case errors.Is(err, token.ErrExpired):
		return errordefs.New(errordefs.API_TOKEN_EXPIRED, "Token is expired.", "")
	case errors.Is(err, token.ErrInvalid), errors.Is(err, token.ErrWrongType):
		return errordefs.New(errordefs.API_TOKEN_INVALID, "Token is invalid or expired.", "")
	}
	slog.LogAttrs(r.Context(), slog.LevelError, "authentication request failed", slog.String("error", err.Error()))
	return errordefs.New(errordefs.API_INTERNAL, "internal server error", "")
}

// handleRegister handles POST /api/register/.
func (m *Mux) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleRegister")
	defer span.End()
	defer r.Body.Close()

	var req auth.RegisterRequest
	if ferr := decodeInto(r, w, &req); ferr != nil {
		m.fail(w, r, ferr)
		return
	}
	span.SetAttributes(attribute.String("username", req.Username))

	user, err := m.auth.Register(ctx, req)
	m.metrics.ObserveAuth("register", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.authError(r, err))
		return
	}

	slog.LogAttrs(ctx, slog.LevelInfo, "user registered",
		slog.String("user", user.Username),
		slog.String("correlation_id", correlationID(ctx)),
	)
	m.writeJSON(w, http.StatusCreated, map[string]string{
		"username": user.Username,
		"email":    user.Email,
	})
}

// handleLogin handles POST /api/login/ and answers with a single access token.
func (m *Mux) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleLogin")
	defer span.End()
	defer r.Body.Close()

	var req auth.CredentialsRequest
	if ferr := decodeInto(r, w, &req); ferr != nil {
		m.fail(w, r, ferr)
		return
	}

	user, err := m.auth.Authenticate(ctx, req)
	var access string
	if err == nil {
		access, err = m.issuer.IssueAccess(*user)
	}
	m.metrics.ObserveAuth("login", err)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		span.SetStatus(codes.Error, err.Error())
		m.rejectLogin(w, r)
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.authError(r, err))
		return
	}
	m.writeJSON(w, http.StatusOK, map[string]string{"token": access})
}

// rejectLogin writes the flat {"error": "Invalid credentials"} body of the
// login endpoint. The failure is logged and recorded like any other.
func (m *Mux) rejectLogin(w http.ResponseWriter, r *http.Request) {
	e := m.authError(r, auth.ErrInvalidCredentials)
	e.CorrelationID = correlationID(r.Context())
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = e
	}
	m.writeJSON(w, e.HTTPStatus, map[string]string{"error": e.Message})
	m.recordError(r, e)
}

// handleObtainToken handles POST /api/token/ and answers with an access and
// refresh token pair.
func (m *Mux) handleObtainToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleObtainToken")
	defer span.End()
	defer r.Body.Close()

	var req auth.CredentialsRequest
	if ferr := decodeInto(r, w, &req); ferr != nil {
		m.fail(w, r, ferr)
		return
	}

	user, err := m.auth.Authenticate(ctx, req)
	var pair token.Pair
	if err == nil {
		pair, err = m.issuer.IssuePair(*user)
	}
	m.metrics.ObserveAuth("token", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.authError(r, err))
		return
	}
	m.writeJSON(w, http.StatusOK, pair)
}

// handleRefreshToken handles POST /api/token/refresh/.
func (m *Mux) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer(tracerName).Start(r.Context(), "handleRefreshToken")
	defer span.End()
	defer r.Body.Close()

	var req auth.RefreshRequest
	if ferr := decodeInto(r, w, &req); ferr != nil {
		m.fail(w, r, ferr)
		return
	}

	err := m.auth.Validate(req)
	var access string
	if err == nil {
		access, err = m.issuer.Refresh(req.Refresh)
	}
	m.metrics.ObserveAuth("refresh", err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, m.authError(r, err))
		return
	}
	m.writeJSON(w, http.StatusOK, map[string]string{"access": access})
}
