// Package wserr classifies event-gateway errors so the run loop knows
// whether to ignore, resume, re-identify, or give up.
package wserr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rustcc-bot/qbot-gateway/internal/auth"
	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
)

// AbnormalCloseError wraps a WebSocket read or write failure that didn't
// arrive as a clean close frame (TCP reset, EOF without a close frame). It
// is treated the same as the resumable server codes 4008/4009: the
// session itself may still be alive on the platform side.
type AbnormalCloseError struct {
	Err error
}

func (e *AbnormalCloseError) Error() string {
	return fmt.Sprintf("abnormal WebSocket close: %s", e.Err)
}

func (e *AbnormalCloseError) Unwrap() error { return e.Err }

// Ignoreable reports whether err should simply be logged and the
// connection left running. A malformed JSON payload falls into this
// bucket: one bad frame doesn't justify tearing down the session.
func Ignoreable(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}

// Resumable reports whether err indicates the session can be resumed
// with the last-seen seq rather than starting a fresh IDENTIFY.
func Resumable(err error) bool {
	var rc *gwproto.ReturnCodeError
	if errors.As(err, &rc) {
		return rc.Code == 4008 || rc.Code == 4009
	}
	var abnormal *AbnormalCloseError
	return errors.As(err, &abnormal)
}

// ReIdentifiable reports whether err calls for a brand-new IDENTIFY
// (session state on the server is gone, but the connection itself is
// salvageable by reconnecting).
func ReIdentifiable(err error) bool {
	if Resumable(err) {
		return true
	}
	var rc *gwproto.ReturnCodeError
	if errors.As(err, &rc) {
		c := rc.Code
		return c == 7 || (c >= 4006 && c <= 4009) || (c >= 4900 && c <= 4913)
	}
	return false
}

// InvalidSession reports whether err is the gateway's OP_INVALID_SESSION
// signal (close code 9), which skips the usual backoff before
// re-identifying.
func InvalidSession(err error) bool {
	var rc *gwproto.ReturnCodeError
	if errors.As(err, &rc) {
		return rc.Code == 9
	}
	return false
}

// Recoverable reports whether the run loop should attempt to continue
// at all after err, as opposed to terminating the process.
func Recoverable(err error) bool {
	var rc *gwproto.ReturnCodeError
	if errors.As(err, &rc) {
		return ReIdentifiable(err) || InvalidSession(err)
	}
	var tokenErr *auth.AccessTokenError
	if errors.As(err, &tokenErr) {
		return false
	}
	return true
}
