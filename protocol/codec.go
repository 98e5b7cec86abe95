package protocol

import "bufio"

// VersionReply is a decoded version response.
type VersionReply struct {
	// Text is the raw version text ("1.10.3-E"). Empty when Unknown is set.
	Text string

	// Unknown is set when the server answered but reported no version.
	Unknown bool

	// Enterprise is set when the version text carries EnterpriseMarker.
	Enterprise bool
}

// Codec encodes the version request and decodes its response for one
// wire protocol.
type Codec interface {
	// EncodeVersionRequest returns the request bytes. The slice is owned by the caller.
	EncodeVersionRequest() []byte

	// ReadFrame reads exactly one response frame from r.
	ReadFrame(r *bufio.Reader) ([]byte, error)

	// DecodeVersionResponse decodes a frame returned by ReadFrame.
	DecodeVersionResponse(frame []byte) (VersionReply, error)
}

var (
	// Text is the line-oriented text protocol codec.
	Text Codec = textCodec{}

	// Binary is the fixed-header binary protocol codec.
	Binary Codec = binaryCodec{}
)
