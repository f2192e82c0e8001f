// Package webhook implements the event-gateway's webhook ingest transport:
// a single handler endpoint accepting the same envelope shape the
// WebSocket transport speaks, plus the signed challenge handshake the
// platform uses to verify callback ownership. The server listens with
// plain HTTP; TLS is not terminated by this package.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
)

// maxBodyBytes is the declared-content-length ceiling; requests over it
// are rejected with 413 before their body is read.
const maxBodyBytes = 64 * 1024

// shutdownTimeout bounds how long Run waits for in-flight requests to
// finish after quit is observed.
const shutdownTimeout = 10 * time.Second

// Handler receives AT_MESSAGE_CREATE dispatch events, same contract as
// the WebSocket transport's handler.
type Handler interface {
	HandleAtMessage(ctx context.Context, payload gwproto.AtMessageCreatePayload)
}

// Config wires a Server's dependencies.
type Config struct {
	ListenAddr string
	Secret     string // the bot's shared secret, used to derive the challenge signing key
	Handler    Handler
	Logger     *log.Logger
}

// Server is the webhook ingest endpoint (plain HTTP).
type Server struct {
	cfg       Config
	challenge *challengeGenerator
}

// New builds a Server from cfg, defaulting Logger if unset.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[webhook] ", log.LstdFlags)
	}
	return &Server{
		cfg:       cfg,
		challenge: newChallengeGenerator(cfg.Secret),
	}
}

// Run serves until quit is closed, then gives in-flight requests up to
// shutdownTimeout before returning.
func (s *Server) Run(ctx context.Context, quit <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTTP)
	httpServer := &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-quit:
		s.cfg.Logger.Printf("gracefully closing webhook connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.cfg.Logger.Printf("timeout while closing webhook connections: %v", err)
		} else {
			s.cfg.Logger.Printf("webhook connections closed")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook: serve: %w", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json; charset=utf-8")

	requestID := uuid.New().String()
	s.cfg.Logger.Printf("received request id=%s ua=%s appid=%s", requestID, r.UserAgent(), r.Header.Get("X-Bot-Appid"))

	if r.ContentLength > maxBodyBytes {
		s.cfg.Logger.Printf("request %s body too large: %d", requestID, r.ContentLength)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "Request body too large"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.cfg.Logger.Printf("request body too large while reading")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "Request body too large"})
		return
	}

	status, resp, err := s.handleBody(body)
	if err != nil {
		s.cfg.Logger.Printf("webhook returning error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "Internal server error"})
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp)
}

// handleBody decodes and routes one envelope, returning the HTTP status
// and raw JSON body to send. Only truly unexpected failures (never a
// decode or unknown-opcode condition, which are reported via status+resp)
// are returned as an error.
func (s *Server) handleBody(body []byte) (int, []byte, error) {
	var env gwproto.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		resp, merr := json.Marshal(errorResponse{Error: err.Error()})
		if merr != nil {
			return 0, nil, merr
		}
		return http.StatusBadRequest, resp, nil
	}

	switch env.Op {
	case gwproto.OpDispatch:
		eventType := ""
		if env.EventType != nil {
			eventType = *env.EventType
		}
		s.dispatchEvent(eventType, env)
		return http.StatusOK, []byte("{}"), nil

	case gwproto.OpHTTPCallbackChallenge:
		payload, err := gwproto.Decode[gwproto.WebhookChallengePayload](env)
		if err != nil {
			resp, merr := json.Marshal(errorResponse{Error: err.Error()})
			if merr != nil {
				return 0, nil, merr
			}
			return http.StatusBadRequest, resp, nil
		}
		signature := s.challenge.respond(payload.EventTS + payload.PlainToken)
		resp, err := json.Marshal(gwproto.WebhookChallengeResponsePayload{
			PlainToken: payload.PlainToken,
			Signature:  signature,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, resp, nil

	default:
		resp, err := json.Marshal(errorResponse{Error: "Unknown opcode"})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusBadRequest, resp, nil
	}
}

func (s *Server) dispatchEvent(eventType string, env gwproto.Envelope) {
	switch eventType {
	case "AT_MESSAGE_CREATE":
		payload, err := gwproto.Decode[gwproto.AtMessageCreatePayload](env)
		if err != nil {
			s.cfg.Logger.Printf("failed to decode AT_MESSAGE_CREATE: %v", err)
			return
		}
		go s.cfg.Handler.HandleAtMessage(context.Background(), payload)
	case "DIRECT_MESSAGE_CREATE", "PUBLIC_MESSAGE_DELETE":
		s.cfg.Logger.Printf("received webhook event %s", eventType)
	default:
		s.cfg.Logger.Printf("unhandled webhook event %s", eventType)
	}
}
