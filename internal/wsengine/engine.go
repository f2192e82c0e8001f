// Package wsengine implements the WebSocket transport of the
// event-gateway client: handshake, identify, heartbeat, dispatch, and
// the reconnect/resume/re-identify retry ladder.
package wsengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
	"github.com/rustcc-bot/qbot-gateway/internal/wserr"
)

// identifyDelay is the empirical workaround for a transient opcode-9
// (invalid session) the platform returns when IDENTIFY follows HELLO
// too quickly.
const identifyDelay = 2 * time.Second

// fixedHeartbeatInterval overrides whatever HELLO announces: the
// platform has been observed to disconnect idle sessions on a
// minute-scale cadence, so a fixed 30s heartbeat is used regardless.
const fixedHeartbeatInterval = 30 * time.Second

// reconnectBackoff is the fixed delay before every reconnect attempt
// except an invalid-session re-identify, which skips it.
const reconnectBackoff = 5 * time.Second

// Handler receives AT_MESSAGE_CREATE dispatch events. HandleAtMessage is
// invoked from a freshly spawned goroutine per message — the receive
// loop does not wait for it — so implementations must be safe for
// concurrent use with themselves.
type Handler interface {
	HandleAtMessage(ctx context.Context, payload gwproto.AtMessageCreatePayload)
}

// Authorizer supplies the bearer token used to IDENTIFY and RESUME.
type Authorizer interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// GatewayURLFunc fetches the WebSocket URL to (re)connect to. It is
// called once at startup and again before every reconnect, since a
// stale gateway URL is a real platform failure mode.
type GatewayURLFunc func(ctx context.Context) (string, error)

// Config wires an Engine's dependencies.
type Config struct {
	Name       string // "production" or "sandbox", used only for logging
	GatewayURL GatewayURLFunc
	Authorizer Authorizer
	AuthGroup  *AuthGroup
	Handler    Handler
	Logger     *log.Logger
}

// Engine runs one WebSocket session's full lifecycle under a shared
// quit signal.
type Engine struct {
	cfg Config
}

// New builds an Engine from cfg, defaulting Logger if unset.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, fmt.Sprintf("[wsengine:%s] ", cfg.Name), log.LstdFlags)
	}
	return &Engine{cfg: cfg}
}

// session is the live WebSocket session state of §3 "Session state".
type session struct {
	conn              *websocket.Conn
	sessionID         string
	heartbeatInterval time.Duration
	token             string // pre-formatted "QQBot <token>" header value
	lastSeq           int64
}

// Run drives the engine until quit is closed (returns nil) or a fatal
// error terminates the run loop.
func (e *Engine) Run(ctx context.Context, quit <-chan struct{}) error {
	gatewayURL, err := e.cfg.GatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("wsengine: fetch gateway url: %w", err)
	}
	conn, err := e.dial(ctx, gatewayURL)
	if err != nil {
		return err
	}
	sess, err := e.handshakeAndAuthenticate(ctx, conn)
	if err != nil {
		return err
	}
	e.cfg.Logger.Printf("connected url=%s session=%s heartbeat=%s", gatewayURL, sess.sessionID, sess.heartbeatInterval)
	if err := sendOp(sess.conn, gwproto.HeartbeatPayload{}); err != nil {
		return err
	}

outer:
	for {
		loopErr := e.runLoopInner(ctx, sess, quit)
		if loopErr == nil {
			return nil
		}

		for {
			if wserr.Ignoreable(loopErr) {
				e.cfg.Logger.Printf("ignoring ws error: %v", loopErr)
				continue outer
			}
			e.cfg.Logger.Printf("ws loop error: %v", loopErr)
			if !wserr.Recoverable(loopErr) {
				return loopErr
			}
			if !wserr.InvalidSession(loopErr) {
				time.Sleep(reconnectBackoff)
			}

			e.cfg.Logger.Printf("reconnecting ws")
			gatewayURL, gerr := e.cfg.GatewayURL(ctx)
			if gerr != nil {
				return gerr
			}
			newConn, derr := e.dial(ctx, gatewayURL)
			if derr != nil {
				return derr
			}

			e.cfg.AuthGroup.mu.Lock()
			hello, herr := e.receiveHello(newConn)
			if herr != nil {
				e.cfg.AuthGroup.mu.Unlock()
				return herr
			}
			if wserr.Resumable(loopErr) {
				e.cfg.Logger.Printf("resuming ws session")
				if resumeErr := resume(newConn, sess); resumeErr != nil {
					e.cfg.AuthGroup.mu.Unlock()
					loopErr = resumeErr
					e.cfg.Logger.Printf("failed to resume ws session: %v", loopErr)
					continue
				}
				e.cfg.AuthGroup.mu.Unlock()
				continue outer
			}

			e.cfg.Logger.Printf("re-identifying ws session")
			newSess, authErr := e.authenticate(ctx, newConn, hello)
			e.cfg.AuthGroup.mu.Unlock()
			if authErr != nil {
				return authErr
			}
			sess = newSess
			if err := sendOp(sess.conn, gwproto.HeartbeatPayload{}); err != nil {
				return err
			}
			continue outer
		}
	}
}

func (e *Engine) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsengine: dial %s: %w", url, err)
	}
	return conn, nil
}

// handshakeAndAuthenticate acquires the auth-group lock for the
// handshake+identify phase so concurrent engine instances don't overlap
// IDENTIFY (see internal/wsengine.AuthGroup).
func (e *Engine) handshakeAndAuthenticate(ctx context.Context, conn *websocket.Conn) (*session, error) {
	e.cfg.AuthGroup.mu.Lock()
	defer e.cfg.AuthGroup.mu.Unlock()

	hello, err := e.receiveHello(conn)
	if err != nil {
		return nil, err
	}
	return e.authenticate(ctx, conn, hello)
}

func (e *Engine) receiveHello(conn *websocket.Conn) (gwproto.HelloPayload, error) {
	env, _, err := readEnvelope(conn)
	if err != nil {
		return gwproto.HelloPayload{}, err
	}
	return gwproto.Decode[gwproto.HelloPayload](env)
}

func (e *Engine) authenticate(ctx context.Context, conn *websocket.Conn, _ gwproto.HelloPayload) (*session, error) {
	time.Sleep(identifyDelay)

	token, err := e.cfg.Authorizer.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	bearer := "QQBot " + token

	identify := gwproto.IdentifyPayload{
		Token:      bearer,
		Intents:    1 << 30, // PUBLIC_GUILD_MESSAGES
		Shard:      [2]int{0, 1},
		Properties: gwproto.IdentifyProperties{},
	}
	if err := sendOp(conn, identify); err != nil {
		return nil, err
	}

	env, _, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	if env.Op != gwproto.OpDispatch {
		return nil, &gwproto.ReturnCodeError{Code: int(env.Op)}
	}
	if env.EventType == nil || *env.EventType != "READY" {
		got := ""
		if env.EventType != nil {
			got = *env.EventType
		}
		return nil, &gwproto.UnexpectedDataError{Reason: fmt.Sprintf("expect READY, got %s", got)}
	}

	var ready gwproto.ReadyPayload
	if err := json.Unmarshal(env.Data, &ready); err != nil {
		return nil, fmt.Errorf("wsengine: decode READY: %w", err)
	}

	lastSeq := int64(-1)
	if env.Seq != nil {
		lastSeq = *env.Seq
	}

	return &session{
		conn:              conn,
		sessionID:         ready.SessionID,
		heartbeatInterval: fixedHeartbeatInterval,
		token:             bearer,
		lastSeq:           lastSeq,
	}, nil
}

func resume(newConn *websocket.Conn, sess *session) error {
	payload := gwproto.ResumePayload{
		Token:     sess.token,
		SessionID: sess.sessionID,
		Seq:       sess.lastSeq,
	}
	if err := sendOp(newConn, payload); err != nil {
		return err
	}
	sess.conn = newConn
	return nil
}

type envResult struct {
	env gwproto.Envelope
	err error
}

// runLoopInner is the per-session receive loop: it fans a dedicated
// reader goroutine into a channel so it can select between new
// messages, the heartbeat ticker, and quit — with quit checked first,
// matching the biased select in the source design.
func (e *Engine) runLoopInner(ctx context.Context, sess *session, quit <-chan struct{}) error {
	msgCh := make(chan envResult, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			env, _, err := readEnvelope(sess.conn)
			select {
			case msgCh <- envResult{env: env, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(sess.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			e.cfg.Logger.Printf("closing ws session %s", sess.sessionID)
			_ = sess.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = sess.conn.Close()
			return nil
		default:
		}

		select {
		case <-quit:
			e.cfg.Logger.Printf("closing ws session %s", sess.sessionID)
			_ = sess.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = sess.conn.Close()
			return nil
		case <-ticker.C:
			if err := sendOp(sess.conn, gwproto.HeartbeatPayload{}); err != nil {
				return err
			}
		case res := <-msgCh:
			if res.err != nil {
				return res.err
			}
			if err := e.handleEnvelope(ctx, sess, res.env); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) handleEnvelope(ctx context.Context, sess *session, env gwproto.Envelope) error {
	if env.Seq != nil && *env.Seq > sess.lastSeq {
		sess.lastSeq = *env.Seq
	}

	switch env.Op {
	case gwproto.OpDispatch:
		eventType := ""
		if env.EventType != nil {
			eventType = *env.EventType
		}
		switch eventType {
		case "READY":
			e.cfg.Logger.Printf("unexpected READY outside identify, ignoring")
		case "RESUMED":
			e.cfg.Logger.Printf("resumed ws session")
		case "AT_MESSAGE_CREATE":
			payload, err := gwproto.Decode[gwproto.AtMessageCreatePayload](env)
			if err != nil {
				return err
			}
			go e.cfg.Handler.HandleAtMessage(ctx, payload)
		case "DIRECT_MESSAGE_CREATE", "PUBLIC_MESSAGE_DELETE":
			e.cfg.Logger.Printf("received ws event %s", eventType)
		default:
			e.cfg.Logger.Printf("unhandled ws event %s", eventType)
		}
	case gwproto.OpHeartbeat:
		return sendOp(sess.conn, gwproto.HeartbeatPayload{})
	case gwproto.OpReconnect:
		return &gwproto.ReturnCodeError{Code: int(gwproto.OpReconnect)}
	case gwproto.OpInvalidSession:
		return &gwproto.ReturnCodeError{Code: int(gwproto.OpInvalidSession)}
	case gwproto.OpHeartbeatAck, gwproto.OpHTTPCallbackAck:
		// logged and ignored
	default:
		e.cfg.Logger.Printf("unknown opcode %s", env.Op)
	}
	return nil
}

func sendOp(conn *websocket.Conn, payload gwproto.Payload) error {
	env, err := gwproto.Encode(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wsengine: marshal envelope: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &wserr.AbnormalCloseError{Err: err}
	}
	return nil
}

func readEnvelope(conn *websocket.Conn) (gwproto.Envelope, []byte, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		// gorilla/websocket reports an EOF without a close frame as a
		// CloseError with code 1006; that is an abnormal close, not a
		// server-sent code.
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
			return gwproto.Envelope{}, nil, &gwproto.ReturnCodeError{Code: closeErr.Code}
		}
		return gwproto.Envelope{}, nil, &wserr.AbnormalCloseError{Err: err}
	}
	var env gwproto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return gwproto.Envelope{}, nil, err
	}
	return env, data, nil
}
