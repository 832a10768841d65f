package relay

// MaxEnvelopeLength bounds a decoded SealedEnvelope payload. No maximum is
// mandated upstream; this is the deployment-defined cap the codec enforces.
const MaxEnvelopeLength = 64 * 1024

// Encoding describes the plaintext carried by a SealedEnvelope.
type Encoding uint8

const (
	EncodingNoop Encoding = iota
	EncodingBlob
	EncodingJson
)

func (e Encoding) String() string {
	switch e {
	case EncodingNoop:
		return "Noop"
	case EncodingBlob:
		return "Blob"
	case EncodingJson:
		return "Json"
	default:
		return "Unknown"
	}
}

// SealedEnvelope is a ciphertext plus its framing metadata. Payload is an
// over-allocated buffer; only the first Length bytes are significant.
// Length is the number of ciphertext bytes Noise's WriteMessage produced,
// which exceeds the plaintext length by TagLen.
type SealedEnvelope struct {
	Length    uint32
	Encoding  Encoding
	Payload   []byte
	Broadcast bool
}

// Significant returns the meaningful prefix of Payload.
func (e SealedEnvelope) Significant() []byte {
	return e.Payload[:e.Length]
}
