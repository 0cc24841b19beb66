// internal/protocol/signal.go
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/sdp/v3"
)

// ErrBadSDP is returned when an offer or answer body does not parse as SDP.
var ErrBadSDP = errors.New("invalid session description")

// sessionDescription mirrors the browser's RTCSessionDescriptionInit.
type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// validateSessionDescription accepts either a bare SDP string or an
// RTCSessionDescriptionInit object. The payload is only inspected; the relay
// forwards the original bytes.
func validateSessionDescription(kind EventType, raw json.RawMessage, l Limits) *DecodeError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fieldErr("sdp", ErrMissingField)
	}
	if len(raw) > l.MaxSignalBytes {
		return fieldErr("sdp", ErrTooLong)
	}

	var body string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &body); err != nil {
			return fieldErr("sdp", fmt.Errorf("%w: %v", ErrMalformed, err))
		}
	case '{':
		var desc sessionDescription
		if err := json.Unmarshal(raw, &desc); err != nil {
			return fieldErr("sdp", fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		if desc.Type != "" && desc.Type != string(kind) {
			return fieldErr("sdp.type", ErrInvalidField)
		}
		body = desc.SDP
	default:
		return fieldErr("sdp", ErrInvalidField)
	}

	if body == "" {
		return fieldErr("sdp", ErrMissingField)
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(body)); err != nil {
		return fieldErr("sdp", fmt.Errorf("%w: %v", ErrBadSDP, err))
	}
	return nil
}

// validateCandidate accepts an RTCIceCandidateInit object or a bare candidate
// string. An empty candidate string signals end-of-candidates and is allowed.
func validateCandidate(raw json.RawMessage, l Limits) *DecodeError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fieldErr("candidate", ErrMissingField)
	}
	if len(raw) > l.MaxSignalBytes {
		return fieldErr("candidate", ErrTooLong)
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fieldErr("candidate", fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		return nil
	case '{':
		var init struct {
			Candidate *string `json:"candidate"`
		}
		if err := json.Unmarshal(raw, &init); err != nil {
			return fieldErr("candidate", fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		if init.Candidate == nil {
			return fieldErr("candidate.candidate", ErrMissingField)
		}
		return nil
	}
	return fieldErr("candidate", ErrInvalidField)
}
