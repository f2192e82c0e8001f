package gwproto

import "testing"

func TestEncodeDecode_RoundTrip(t *testing.T) {
	hb := HeartbeatPayload{}
	env, err := Encode(hb)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if env.Op != OpHeartbeat {
		t.Fatalf("expected OpHeartbeat, got %v", env.Op)
	}

	decoded, err := Decode[HeartbeatPayload](env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != hb {
		t.Fatalf("round trip mismatch: %v", decoded)
	}
}

func TestDecode_OpcodeMismatch(t *testing.T) {
	env := Envelope{Op: OpHello, Data: []byte(`{}`)}
	_, err := Decode[HeartbeatPayload](env)
	if err == nil {
		t.Fatalf("expected opcode mismatch error")
	}
	rc, ok := err.(*ReturnCodeError)
	if !ok {
		t.Fatalf("expected *ReturnCodeError, got %T", err)
	}
	if rc.Code != int(OpHello) {
		t.Fatalf("expected code %d, got %d", OpHello, rc.Code)
	}
}

func TestOpcode_String(t *testing.T) {
	if OpDispatch.String() != "Dispatch" {
		t.Fatalf("expected Dispatch, got %s", OpDispatch)
	}
	if Opcode(999).String() != "Op(999)" {
		t.Fatalf("expected fallback form, got %s", Opcode(999))
	}
}
