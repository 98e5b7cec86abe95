// Package protocol implements the version exchange of the memcached/Arcus
// text and binary protocols.
//
// It only covers what capability negotiation needs: encoding the version
// request, reading one framed response, decoding the version text and
// parsing it into a structured Version.
//
// # Codecs
//
// Text and Binary implement Codec:
//
//	req := protocol.Text.EncodeVersionRequest() // "version\r\n"
//	conn.Write(req)
//	frame, err := protocol.Text.ReadFrame(bufio.NewReader(conn))
//	reply, err := protocol.Text.DecodeVersionResponse(frame)
//	if reply.Unknown {
//	    // server answered "VERSION UNKNOWN"
//	}
//	v, err := protocol.ParseVersion(reply.Text)
//
// # Enterprise marker
//
// Enterprise builds suffix their version with "-E". The text codec looks
// for the marker anywhere in the version text. The binary codec only looks
// at or after BinaryEnterpriseScanOffset, matching the servers' observed
// behavior. Both rules agree on every well-formed "x.y.z[-E]" version.
//
// # Errors
//
//   - ParseError: malformed response or version text, CLOSE connection
//   - RangeError: a version component does not fit in a uint8
//   - StatusError: binary response with non-success status
//   - ConnectionError: network/I/O error, connection already broken
//
// ShouldCloseConnection reports which ones leave the connection unusable.
package protocol
