package protocol

// Text protocol tokens
const (
	// CRLF is the line terminator for the text protocol
	CRLF = "\r\n"

	// CmdVersion asks the server for its version string.
	CmdVersion = "version"

	// StatusVersion prefixes a successful text reply: "VERSION <text>\r\n"
	StatusVersion = "VERSION"

	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// Version text markers
const (
	// UnknownMarker starts the "UNKNOWN" token a server sends when it has no version.
	UnknownMarker = 'U'

	// EnterpriseMarker identifies an enterprise build ("1.2.3-E").
	EnterpriseMarker = 'E'

	// SuffixSeparator separates the numeric core from the build marker.
	SuffixSeparator = '-'

	// ComponentSeparator separates major, minor and micro.
	ComponentSeparator = '.'
)

// Binary protocol header
const (
	MagicRequest  byte = 0x80
	MagicResponse byte = 0x81

	OpcodeVersion byte = 0x0b

	DatatypeRawBytes byte = 0x00

	// HeaderLength is the fixed size of request and response headers.
	HeaderLength = 24
)

// Binary response status codes
const (
	StatusSuccess         uint16 = 0x0000
	StatusKeyNotFound     uint16 = 0x0001
	StatusUnknownCommand  uint16 = 0x0081
	StatusOutOfMemory     uint16 = 0x0082
	StatusNotSupported    uint16 = 0x0083
	StatusInternalError   uint16 = 0x0084
	StatusBusy            uint16 = 0x0085
	StatusTemporaryFailed uint16 = 0x0086
)

// Limits
const (
	// MaxVersionBodyLength bounds the body of a binary version response.
	// Real servers send a dozen bytes; anything larger is a framing error.
	MaxVersionBodyLength = 256

	// BinaryEnterpriseScanOffset is where the binary codec starts looking
	// for EnterpriseMarker in the version body.
	BinaryEnterpriseScanOffset = 3
)
