package wire

import "tungo/domain/relay"

// EncodeServerMessage serialises the inner plaintext exchanged over the
// server channel once it is in transport mode. This is independent of
// Encode/Decode above: a ServerMessage is first encoded with this codec,
// then the resulting bytes are encrypted into a SealedEnvelope.
func EncodeServerMessage(m relay.ServerMessage) ([]byte, error) {
	w := &writer{}
	w.fixed(MagicSM[:])
	w.byte(byte(V1))
	w.byte(byte(m.Kind))

	switch m.Kind {
	case relay.SMNewSession:
		w.uint16(uint16(len(m.NewSession.Participants)))
		for _, p := range m.NewSession.Participants {
			w.bytes16(p)
		}
	case relay.SMSessionReadyNotify, relay.SMSessionActiveNotify, relay.SMCloseSession, relay.SMSessionFinished:
		w.sessionId(m.SessionId)
	case relay.SMSessionConnection:
		w.sessionId(m.SessionId)
		w.bytes16(m.PeerKey)
	case relay.SMSessionCreated, relay.SMSessionReady, relay.SMSessionActive:
		w.sessionId(m.Result.Id)
		w.uint16(uint16(len(m.Result.Participants)))
		for _, p := range m.Result.Participants {
			w.bytes16(p)
		}
	case relay.SMError:
		w.uint32(uint32(m.ErrorCode))
		w.bytes16([]byte(m.ErrorText))
	default:
		return nil, ErrBadKind
	}
	return w.bytesOut(), nil
}

// DecodeServerMessage parses bytes produced by EncodeServerMessage.
func DecodeServerMessage(data []byte) (relay.ServerMessage, error) {
	r := newReader(data)
	magic, err := r.fixed(2)
	if err != nil {
		return relay.ServerMessage{}, err
	}
	if magic[0] != MagicSM[0] || magic[1] != MagicSM[1] {
		return relay.ServerMessage{}, ErrBadMagic
	}
	vb, err := r.byte()
	if err != nil {
		return relay.ServerMessage{}, err
	}
	if !Version(vb).IsValid() {
		return relay.ServerMessage{}, ErrBadVersion
	}
	kb, err := r.byte()
	if err != nil {
		return relay.ServerMessage{}, err
	}
	kind := relay.ServerMessageKind(kb)

	var m relay.ServerMessage
	m.Kind = kind

	switch kind {
	case relay.SMNewSession:
		count, err := r.uint16()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		participants := make([][]byte, 0, count)
		for i := uint16(0); i < count; i++ {
			p, err := r.bytes16()
			if err != nil {
				return relay.ServerMessage{}, err
			}
			participants = append(participants, p)
		}
		m.NewSession = relay.SessionRequest{Participants: participants}
	case relay.SMSessionReadyNotify, relay.SMSessionActiveNotify, relay.SMCloseSession, relay.SMSessionFinished:
		m.SessionId, err = r.sessionId()
	case relay.SMSessionConnection:
		m.SessionId, err = r.sessionId()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		m.PeerKey, err = r.bytes16()
	case relay.SMSessionCreated, relay.SMSessionReady, relay.SMSessionActive:
		var id relay.SessionId
		id, err = r.sessionId()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		var count uint16
		count, err = r.uint16()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		participants := make([][]byte, 0, count)
		for i := uint16(0); i < count; i++ {
			var p []byte
			p, err = r.bytes16()
			if err != nil {
				return relay.ServerMessage{}, err
			}
			participants = append(participants, p)
		}
		m.Result = relay.SessionResult{Id: id, Participants: participants}
	case relay.SMError:
		var code uint32
		code, err = r.uint32()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		var text []byte
		text, err = r.bytes16()
		if err != nil {
			return relay.ServerMessage{}, err
		}
		m.ErrorCode = int(code)
		m.ErrorText = string(text)
	default:
		return relay.ServerMessage{}, ErrBadKind
	}
	if err != nil {
		return relay.ServerMessage{}, err
	}
	return m, nil
}
