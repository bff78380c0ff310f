package ws

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cuetrace/opencue/internal/cueerr"
	"github.com/cuetrace/opencue/internal/session"
)

func TestErrPayloadMapsSentinelErrors(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{cueerr.ErrCueFileNotFound, "CueFileNotFound"},
		{cueerr.ErrInvalidState, "InvalidState"},
		{cueerr.ErrProtocolBadMessage, "ProtocolBadMessage"},
		{fmt.Errorf("wrapped: %w", cueerr.ErrPersistIO), "PersistIO"},
	}
	for _, c := range cases {
		got := errPayload(c.err, "fallback")
		if got["code"] != c.code {
			t.Errorf("errPayload(%v)[code] = %q, want %q", c.err, got["code"], c.code)
		}
	}
}

func TestErrPayloadFallsBackForUnknownError(t *testing.T) {
	got := errPayload(fmt.Errorf("something else broke"), "fallback")
	if got["code"] != "Unknown" {
		t.Errorf("code = %q, want Unknown", got["code"])
	}
	if got["message"] != "something else broke" {
		t.Errorf("message = %q, want the error's own text", got["message"])
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	var p subtitlePayload
	var sent []session.OutEvent
	sendEvent := func(ev session.OutEvent) { sent = append(sent, ev) }

	ok := decode(json.RawMessage(`{not valid json`), &p, sendEvent)
	if ok {
		t.Fatal("expected decode to report failure on malformed JSON")
	}
	if len(sent) != 1 || sent[0].Type != "error" {
		t.Fatalf("expected one error event to be sent, got %+v", sent)
	}
}

func TestDecodeAcceptsEmptyPayload(t *testing.T) {
	var p subtitlePayload
	ok := decode(nil, &p, func(session.OutEvent) { t.Fatal("should not send an error for an empty payload") })
	if !ok {
		t.Fatal("an empty payload should decode as ok (no fields to populate)")
	}
}

func TestDecodePopulatesFields(t *testing.T) {
	var p subtitlePayload
	raw := json.RawMessage(`{"text":"hello","start_ms":100,"end_ms":200,"position_ms":150,"content_id":"abc"}`)
	if !decode(raw, &p, func(session.OutEvent) { t.Fatal("should not error on valid payload") }) {
		t.Fatal("expected decode to succeed")
	}
	if p.Text != "hello" || p.StartMs != 100 || p.EndMs != 200 || p.PositionMs != 150 || p.ContentID != "abc" {
		t.Errorf("decoded payload = %+v", p)
	}
}
