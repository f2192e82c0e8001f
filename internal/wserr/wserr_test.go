package wserr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rustcc-bot/qbot-gateway/internal/auth"
	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
)

func TestIgnoreable_JSONErrors(t *testing.T) {
	var syntaxErr error
	if err := json.Unmarshal([]byte("{not json"), &struct{}{}); err != nil {
		syntaxErr = err
	}
	if !Ignoreable(syntaxErr) {
		t.Fatalf("expected JSON syntax error to be ignoreable")
	}

	var typeErr error
	if err := json.Unmarshal([]byte(`"a string"`), &struct{ X int }{}); err != nil {
		typeErr = err
	}
	if !Ignoreable(typeErr) {
		t.Fatalf("expected JSON type error to be ignoreable")
	}

	if Ignoreable(errors.New("not a json error")) {
		t.Fatalf("expected plain error not to be ignoreable")
	}
}

func TestResumable_Codes(t *testing.T) {
	if !Resumable(&gwproto.ReturnCodeError{Code: 4008}) {
		t.Fatalf("expected 4008 to be resumable")
	}
	if !Resumable(&gwproto.ReturnCodeError{Code: 4009}) {
		t.Fatalf("expected 4009 to be resumable")
	}
	if Resumable(&gwproto.ReturnCodeError{Code: 4006}) {
		t.Fatalf("expected 4006 not to be resumable")
	}
	if !Resumable(&AbnormalCloseError{Err: errors.New("reset")}) {
		t.Fatalf("expected abnormal close to be resumable")
	}
}

func TestReIdentifiable_Range(t *testing.T) {
	cases := map[int]bool{
		7:    true,
		4006: true,
		4009: true,
		4900: true,
		4913: true,
		4005: false,
		4914: false,
		9:    false,
	}
	for code, want := range cases {
		got := ReIdentifiable(&gwproto.ReturnCodeError{Code: code})
		if got != want {
			t.Fatalf("ReIdentifiable(code=%d) = %v, want %v", code, got, want)
		}
	}
}

func TestInvalidSession(t *testing.T) {
	if !InvalidSession(&gwproto.ReturnCodeError{Code: 9}) {
		t.Fatalf("expected code 9 to be invalid-session")
	}
	if InvalidSession(&gwproto.ReturnCodeError{Code: 7}) {
		t.Fatalf("expected code 7 not to be invalid-session")
	}
}

func TestRecoverable_AuthorizerErrorIsFatal(t *testing.T) {
	err := &auth.AccessTokenError{Err: errors.New("api error")}
	if Recoverable(err) {
		t.Fatalf("expected AccessTokenError to be non-recoverable")
	}
}

func TestRecoverable_TransportErrorsAreRecoverable(t *testing.T) {
	if !Recoverable(errors.New("dial tcp: connection refused")) {
		t.Fatalf("expected a plain transport error to be recoverable")
	}
	if !Recoverable(&gwproto.ReturnCodeError{Code: 7}) {
		t.Fatalf("expected code 7 to be recoverable")
	}
	if !Recoverable(&gwproto.ReturnCodeError{Code: 9}) {
		t.Fatalf("expected code 9 to be recoverable")
	}
}
