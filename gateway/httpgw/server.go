// Package httpgw exposes a [gateway.Gateway] over HTTP and consumes it back.
//
// [NewHandler] mounts a JSON API under /v1 on a gorilla/mux router.
// [Client] implements gateway.Gateway against that API, so a controller can
// talk to a remote provider through the same interface it uses in-process.
//
// Structured provider failures travel as
//
//	{"errors":[{"code":"...","message":"...","long_message":"..."}]}
//
// with status 422, or 401 for a rejected publishable key. Any other non-2xx
// response is an availability failure.
package httpgw

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PublishableKeyHeader carries the client identifier on every request.
const PublishableKeyHeader = "X-Publishable-Key"

const maxBodyBytes = 64 << 10

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// PublishableKey, when set, must match the request header exactly.
	PublishableKey string
	Logger         *zap.Logger
}

type errorEnvelope struct {
	Errors gateway.Errors `json:"errors"`
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type resumeRequest struct {
	Token string `json:"token"`
}

type registrationResponse struct {
	ID string `json:"id"`
}

type prepareRequest struct {
	Strategy gateway.Strategy `json:"strategy"`
}

type attemptRequest struct {
	Code string `json:"code"`
}

type server struct {
	gw     gateway.Gateway
	key    string
	logger *zap.Logger
}

// NewHandler returns the HTTP API for gw.
func NewHandler(gw gateway.Gateway, opts HandlerOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &server{gw: gw, key: opts.PublishableKey, logger: opts.Logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.requireKey)
	v1.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/resume", s.resumeSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/activate", s.activateSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.endSession).Methods(http.MethodDelete)
	v1.HandleFunc("/registrations", s.createRegistration).Methods(http.MethodPost)
	v1.HandleFunc("/registrations/{id}/prepare", s.prepareVerification).Methods(http.MethodPost)
	v1.HandleFunc("/registrations/{id}/attempt", s.attemptVerification).Methods(http.MethodPost)
	return r
}

func (s *server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(PublishableKeyHeader)), []byte(s.key)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorEnvelope{
				Errors: gateway.NewErrors(gateway.CodePublishableKey, "Invalid publishable key.", ""),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.gw.CreateSession(r.Context(), req.Identifier, req.Password)
	if err != nil {
		s.fail(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *server) resumeSession(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.gw.ResumeSession(r.Context(), req.Token)
	if err != nil {
		s.fail(w, "resume session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) activateSession(w http.ResponseWriter, r *http.Request) {
	if err := s.gw.SetActiveSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "activate session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.gw.EndSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) createRegistration(w http.ResponseWriter, r *http.Request) {
	var req gateway.Registration
	if !decode(w, r, &req) {
		return
	}
	id, err := s.gw.CreateRegistration(r.Context(), req)
	if err != nil {
		s.fail(w, "create registration", err)
		return
	}
	writeJSON(w, http.StatusCreated, registrationResponse{ID: id})
}

func (s *server) prepareVerification(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.gw.PrepareVerification(r.Context(), mux.Vars(r)["id"], req.Strategy); err != nil {
		s.fail(w, "prepare verification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) attemptVerification(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.gw.AttemptVerification(r.Context(), mux.Vars(r)["id"], req.Code)
	if err != nil {
		s.fail(w, "attempt verification", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) fail(w http.ResponseWriter, op string, err error) {
	var list gateway.Errors
	if errors.As(err, &list) {
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{Errors: list})
		return
	}
	s.logger.Error("gateway call failed", zap.String("op", op), zap.Error(err))
	http.Error(w, "identity provider unavailable", http.StatusServiceUnavailable)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{
			Errors: gateway.NewErrors(gateway.CodeParamFormatInvalid, "Malformed request body.", err.Error()),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
