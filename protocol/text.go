package protocol

import (
	"bufio"
	"bytes"
)

// Pre-allocated byte slices for comparisons (avoid allocation in hot path)
var (
	versionRequest    = []byte(CmdVersion + CRLF)
	crlfBytes         = []byte(CRLF)
	statusVersion     = []byte(StatusVersion)
	errorGenericBytes = []byte(ErrorGeneric)
	clientErrorPrefix = []byte(ErrorClientPrefix)
	serverErrorPrefix = []byte(ErrorServerPrefix)
)

type textCodec struct{}

// EncodeVersionRequest returns "version\r\n".
func (textCodec) EncodeVersionRequest() []byte {
	return bytes.Clone(versionRequest)
}

// ReadFrame reads one response line, terminator included.
func (textCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, &ParseError{Message: "response line exceeds read buffer"}
	}
	if err != nil {
		return nil, err
	}

	// ReadSlice points into the reader's buffer
	return bytes.Clone(line), nil
}

// DecodeVersionResponse decodes "VERSION <text>\r\n".
//
// Everything after the first space is the version text. A text starting
// with UnknownMarker ("UNKNOWN") is reported as Unknown.
func (textCodec) DecodeVersionResponse(frame []byte) (VersionReply, error) {
	line := bytes.TrimSuffix(frame, crlfBytes)
	line = bytes.TrimSuffix(line, []byte{'\n'})

	switch {
	case bytes.Equal(line, errorGenericBytes):
		return VersionReply{}, &ParseError{Message: "server does not know the version command"}
	case bytes.HasPrefix(line, clientErrorPrefix), bytes.HasPrefix(line, serverErrorPrefix):
		return VersionReply{}, &ParseError{Message: "server rejected version command: " + string(line)}
	}

	status, text, found := bytes.Cut(line, []byte{' '})
	if !found || !bytes.Equal(status, statusVersion) {
		return VersionReply{}, &ParseError{Message: "unexpected version response: " + string(line)}
	}

	if len(text) == 0 {
		return VersionReply{}, &ParseError{Message: "empty version text"}
	}

	if text[0] == UnknownMarker {
		return VersionReply{Unknown: true}, nil
	}

	return VersionReply{
		Text:       string(text),
		Enterprise: bytes.IndexByte(text, EnterpriseMarker) >= 0,
	}, nil
}
