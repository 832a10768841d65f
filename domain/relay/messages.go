package relay

// HandshakeRole distinguishes the two roles a handshake message can carry:
// the first message sent by an initiator, or a reply sent by a responder.
type HandshakeRole uint8

const (
	RoleInitiator HandshakeRole = iota
	RoleResponder
)

func (r HandshakeRole) String() string {
	if r == RoleResponder {
		return "Responder"
	}
	return "Initiator"
}

// HandshakeMessage carries a raw Noise handshake message together with its
// role and effective length. Buf is over-allocated; only the first Length
// bytes are significant (mirrors SealedEnvelope's length/payload split).
type HandshakeMessage struct {
	Role   HandshakeRole
	Length uint32
	Buf    []byte
}

// Significant returns the meaningful prefix of Buf.
func (m HandshakeMessage) Significant() []byte {
	return m.Buf[:m.Length]
}

// RequestKind tags the variant a RequestMessage carries.
type RequestKind uint8

const (
	ReqServerHandshake RequestKind = iota
	ReqPeerHandshake
	ReqServerMessage
	ReqPeerMessage
)

// RequestMessage is the sum type the facade enqueues and the event loop
// encodes onto the wire. Exactly one of the optional fields is meaningful,
// selected by Kind; PeerKey and Session are populated only for the peer
// variants.
type RequestMessage struct {
	Kind      RequestKind
	PeerKey   []byte
	Session   SessionId
	HasSession bool
	Handshake HandshakeMessage
	Envelope  SealedEnvelope
}

func NewServerHandshakeRequest(hs HandshakeMessage) RequestMessage {
	return RequestMessage{Kind: ReqServerHandshake, Handshake: hs}
}

func NewPeerHandshakeRequest(peerKey []byte, hs HandshakeMessage) RequestMessage {
	return RequestMessage{Kind: ReqPeerHandshake, PeerKey: peerKey, Handshake: hs}
}

func NewServerMessageRequest(env SealedEnvelope) RequestMessage {
	return RequestMessage{Kind: ReqServerMessage, Envelope: env}
}

func NewPeerMessageRequest(peerKey []byte, session SessionId, hasSession bool, env SealedEnvelope) RequestMessage {
	return RequestMessage{Kind: ReqPeerMessage, PeerKey: peerKey, Session: session, HasSession: hasSession, Envelope: env}
}

// ResponseKind tags the variant a ResponseMessage carries. It mirrors
// RequestKind: the wire format is symmetric, the direction of travel is the
// only difference.
type ResponseKind = RequestKind

const (
	RespServerHandshake = ReqServerHandshake
	RespPeerHandshake   = ReqPeerHandshake
	RespServerMessage   = ReqServerMessage
	RespPeerMessage     = ReqPeerMessage
)

// ResponseMessage is the sum type decoded from an inbound transport frame.
type ResponseMessage = RequestMessage

// ServerMessageKind tags the inner plaintext exchanged once the server
// channel is in transport mode.
type ServerMessageKind uint8

const (
	SMNewSession ServerMessageKind = iota
	SMSessionReadyNotify
	SMSessionActiveNotify
	SMSessionConnection
	SMCloseSession
	SMSessionCreated
	SMSessionReady
	SMSessionActive
	SMSessionFinished
	SMError
)

// SessionRequest names the peers a new session should be created for.
type SessionRequest struct {
	Participants [][]byte
}

// SessionResult is the payload attached to SessionCreated/SessionReady/
// SessionActive.
type SessionResult struct {
	Id           SessionId
	Participants [][]byte
}

// ServerMessage is the sum type exchanged over the server channel once it
// is in transport mode. Exactly one field group is meaningful, selected by
// Kind.
type ServerMessage struct {
	Kind ServerMessageKind

	NewSession      SessionRequest
	SessionId       SessionId
	PeerKey         []byte
	Result          SessionResult
	ErrorCode       int
	ErrorText       string
}
