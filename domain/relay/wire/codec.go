package wire

import (
	"tungo/domain/relay"
)

// Encode serialises a RequestMessage/ResponseMessage (the two share a wire
// shape; direction of travel is the only difference) into a deterministic
// self-describing binary frame: decode(encode(m)) == m.
func Encode(m relay.RequestMessage) ([]byte, error) {
	w := &writer{}
	w.fixed(MagicRC[:])
	w.byte(byte(V1))
	w.byte(byte(m.Kind))

	switch m.Kind {
	case relay.ReqServerHandshake:
		writeHandshake(w, m.Handshake)
	case relay.ReqPeerHandshake:
		w.bytes16(m.PeerKey)
		writeHandshake(w, m.Handshake)
	case relay.ReqServerMessage:
		writeEnvelope(w, m.Envelope)
	case relay.ReqPeerMessage:
		w.bytes16(m.PeerKey)
		w.bool(m.HasSession)
		w.sessionId(m.Session)
		writeEnvelope(w, m.Envelope)
	default:
		return nil, ErrBadKind
	}
	return w.bytesOut(), nil
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (relay.RequestMessage, error) {
	r := newReader(data)
	magic, err := r.fixed(2)
	if err != nil {
		return relay.RequestMessage{}, err
	}
	if magic[0] != MagicRC[0] || magic[1] != MagicRC[1] {
		return relay.RequestMessage{}, ErrBadMagic
	}
	vb, err := r.byte()
	if err != nil {
		return relay.RequestMessage{}, err
	}
	if !Version(vb).IsValid() {
		return relay.RequestMessage{}, ErrBadVersion
	}
	kb, err := r.byte()
	if err != nil {
		return relay.RequestMessage{}, err
	}
	kind := relay.RequestKind(kb)

	var m relay.RequestMessage
	m.Kind = kind

	switch kind {
	case relay.ReqServerHandshake:
		m.Handshake, err = readHandshake(r)
	case relay.ReqPeerHandshake:
		m.PeerKey, err = r.bytes16()
		if err != nil {
			return relay.RequestMessage{}, err
		}
		m.Handshake, err = readHandshake(r)
	case relay.ReqServerMessage:
		m.Envelope, err = readEnvelope(r)
	case relay.ReqPeerMessage:
		m.PeerKey, err = r.bytes16()
		if err != nil {
			return relay.RequestMessage{}, err
		}
		m.HasSession, err = r.bool()
		if err != nil {
			return relay.RequestMessage{}, err
		}
		m.Session, err = r.sessionId()
		if err != nil {
			return relay.RequestMessage{}, err
		}
		m.Envelope, err = readEnvelope(r)
	default:
		return relay.RequestMessage{}, ErrBadKind
	}
	if err != nil {
		return relay.RequestMessage{}, err
	}
	return m, nil
}

func writeHandshake(w *writer, hs relay.HandshakeMessage) {
	w.byte(byte(hs.Role))
	w.bytes32(hs.Significant())
}

func readHandshake(r *reader) (relay.HandshakeMessage, error) {
	roleB, err := r.byte()
	if err != nil {
		return relay.HandshakeMessage{}, err
	}
	buf, err := r.bytes32()
	if err != nil {
		return relay.HandshakeMessage{}, err
	}
	return relay.HandshakeMessage{
		Role:   relay.HandshakeRole(roleB),
		Length: uint32(len(buf)),
		Buf:    buf,
	}, nil
}

func writeEnvelope(w *writer, e relay.SealedEnvelope) {
	w.byte(byte(e.Encoding))
	w.bool(e.Broadcast)
	w.bytes32(e.Significant())
}

func readEnvelope(r *reader) (relay.SealedEnvelope, error) {
	encB, err := r.byte()
	if err != nil {
		return relay.SealedEnvelope{}, err
	}
	broadcast, err := r.bool()
	if err != nil {
		return relay.SealedEnvelope{}, err
	}
	payload, err := r.bytes32()
	if err != nil {
		return relay.SealedEnvelope{}, err
	}
	return relay.SealedEnvelope{
		Length:    uint32(len(payload)),
		Encoding:  relay.Encoding(encB),
		Payload:   payload,
		Broadcast: broadcast,
	}, nil
}
