package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_EncodeVersionRequest(t *testing.T) {
	req := Text.EncodeVersionRequest()
	assert.Equal(t, "version\r\n", string(req))

	// Caller owns the slice
	req[0] = 'X'
	assert.Equal(t, "version\r\n", string(Text.EncodeVersionRequest()))
}

func TestText_ReadFrame(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("VERSION 1.10.3\r\nVERSION 2.0.0\r\n"))

	frame, err := Text.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "VERSION 1.10.3\r\n", string(frame))

	frame, err = Text.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "VERSION 2.0.0\r\n", string(frame))

	_, err = Text.ReadFrame(r)
	require.Error(t, err)
}

func TestText_ReadFrame_LineTooLong(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("VERSION "+strings.Repeat("9", 64)+"\r\n"), 16)

	_, err := Text.ReadFrame(r)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestText_DecodeVersionResponse(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		expected VersionReply
	}{
		{"community", "VERSION 1.10.3\r\n", VersionReply{Text: "1.10.3"}},
		{"enterprise", "VERSION 0.7.0-E\r\n", VersionReply{Text: "0.7.0-E", Enterprise: true}},
		{"unknown", "VERSION UNKNOWN\r\n", VersionReply{Unknown: true}},
		{"lf only", "VERSION 1.6.9\n", VersionReply{Text: "1.6.9"}},
		{"text kept verbatim", "VERSION 1.13.4-E extra\r\n", VersionReply{Text: "1.13.4-E extra", Enterprise: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := Text.DecodeVersionResponse([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reply)
		})
	}
}

func TestText_DecodeVersionResponse_Malformed(t *testing.T) {
	frames := []string{
		"ERROR\r\n",
		"CLIENT_ERROR bad command line format\r\n",
		"SERVER_ERROR out of memory\r\n",
		"VERSION\r\n",
		"VERSION \r\n",
		"STORED\r\n",
		"HD 1.2.3\r\n",
		"\r\n",
		"",
	}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			_, err := Text.DecodeVersionResponse([]byte(frame))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.True(t, ShouldCloseConnection(err))
		})
	}
}

func TestText_WellFormedVersionsRoundTrip(t *testing.T) {
	for _, v := range []Version{{0, 0, 0}, {1, 10, 5}, {2, 0, 0}, {255, 255, 255}} {
		for _, suffix := range []string{"", "-E"} {
			reply, err := Text.DecodeVersionResponse([]byte("VERSION " + v.String() + suffix + "\r\n"))
			require.NoError(t, err)
			assert.Equal(t, suffix != "", reply.Enterprise)

			parsed, err := ParseVersion(reply.Text)
			require.NoError(t, err)
			assert.Equal(t, v, parsed)
		}
	}
}
