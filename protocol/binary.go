package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ResponseHeader is the fixed 24 byte header of a binary response.
//
//	Byte/     0       |       1       |       2       |       3       |
//	   +---------------+---------------+---------------+---------------+
//	  0| Magic         | Opcode        | Key Length                    |
//	  4| Extras length | Data type     | Status                        |
//	  8| Total body length                                             |
//	 12| Opaque                                                        |
//	 16| CAS                                                           |
//	   |                                                               |
type ResponseHeader struct {
	Magic        byte
	Opcode       byte
	KeyLength    uint16
	ExtrasLength byte
	DataType     byte
	Status       uint16
	BodyLength   uint32
	Opaque       uint32
	CAS          uint64
}

// ParseResponseHeader decodes the first HeaderLength bytes of b.
func ParseResponseHeader(b []byte) (ResponseHeader, error) {
	if len(b) < HeaderLength {
		return ResponseHeader{}, &ParseError{Message: fmt.Sprintf("short binary header: %d bytes", len(b))}
	}

	return ResponseHeader{
		Magic:        b[0],
		Opcode:       b[1],
		KeyLength:    binary.BigEndian.Uint16(b[2:4]),
		ExtrasLength: b[4],
		DataType:     b[5],
		Status:       binary.BigEndian.Uint16(b[6:8]),
		BodyLength:   binary.BigEndian.Uint32(b[8:12]),
		Opaque:       binary.BigEndian.Uint32(b[12:16]),
		CAS:          binary.BigEndian.Uint64(b[16:24]),
	}, nil
}

type binaryCodec struct{}

// EncodeVersionRequest returns a request header with the version opcode,
// raw bytes datatype and every length field zero.
func (binaryCodec) EncodeVersionRequest() []byte {
	req := make([]byte, HeaderLength)
	req[0] = MagicRequest
	req[1] = OpcodeVersion
	req[5] = DatatypeRawBytes
	return req
}

// ReadFrame reads a response header and its body.
func (binaryCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	bodyLength := binary.BigEndian.Uint32(header[8:12])
	if bodyLength > MaxVersionBodyLength {
		return nil, &ParseError{Message: fmt.Sprintf("binary body length %d exceeds %d", bodyLength, MaxVersionBodyLength)}
	}

	frame := make([]byte, HeaderLength+int(bodyLength))
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderLength:]); err != nil {
		return nil, err
	}

	return frame, nil
}

// DecodeVersionResponse decodes a binary version response.
//
// The body is the bare version text ("1.10.3" or "1.10.3-E"). An empty
// body means the server has no version to report.
func (binaryCodec) DecodeVersionResponse(frame []byte) (VersionReply, error) {
	h, err := ParseResponseHeader(frame)
	if err != nil {
		return VersionReply{}, err
	}

	if h.Magic != MagicResponse {
		return VersionReply{}, &ParseError{Message: fmt.Sprintf("unexpected magic 0x%02x", h.Magic)}
	}
	if h.Opcode != OpcodeVersion {
		return VersionReply{}, &ParseError{Message: fmt.Sprintf("unexpected opcode 0x%02x", h.Opcode)}
	}

	body := frame[HeaderLength:]
	if int(h.BodyLength) != len(body) {
		return VersionReply{}, &ParseError{Message: fmt.Sprintf("body length %d does not match header %d", len(body), h.BodyLength)}
	}

	if h.Status != StatusSuccess {
		return VersionReply{}, &StatusError{Status: h.Status}
	}

	skip := int(h.ExtrasLength) + int(h.KeyLength)
	if skip > len(body) {
		return VersionReply{}, &ParseError{Message: "extras and key exceed body length"}
	}
	value := body[skip:]

	if len(value) == 0 {
		return VersionReply{Unknown: true}, nil
	}

	return VersionReply{
		Text:       string(value),
		Enterprise: len(value) > BinaryEnterpriseScanOffset && bytes.IndexByte(value[BinaryEnterpriseScanOffset:], EnterpriseMarker) >= 0,
	}, nil
}

// EncodeVersionResponse builds a binary version response frame.
// Servers and test doubles use it; clients never send one.
func EncodeVersionResponse(status uint16, version string) []byte {
	frame := make([]byte, HeaderLength+len(version))
	frame[0] = MagicResponse
	frame[1] = OpcodeVersion
	frame[5] = DatatypeRawBytes
	binary.BigEndian.PutUint16(frame[6:8], status)
	binary.BigEndian.PutUint32(frame[8:12], uint32(len(version)))
	copy(frame[HeaderLength:], version)
	return frame
}
