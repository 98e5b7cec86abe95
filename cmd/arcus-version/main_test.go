package main

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textServer(t *testing.T, version string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					if _, err := r.ReadString('\n'); err != nil {
						return
					}
					if _, err := io.WriteString(conn, "VERSION "+version+"\r\n"); err != nil {
						return
					}
				}
			}()
		}
	}()

	return ln.Addr().String()
}

func TestRun(t *testing.T) {
	addr := textServer(t, "1.11.2")

	var out bytes.Buffer
	code := run(Config{servers: addr, concurrency: 2, timeout: 5 * time.Second}, &out, io.Discard)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), addr)
	assert.Contains(t, out.String(), "1.11.2")
	assert.Contains(t, out.String(), "true")
	assert.Contains(t, out.String(), "Fleet: succeeded")
}

func TestRun_NoReply(t *testing.T) {
	var out bytes.Buffer
	code := run(Config{servers: "127.0.0.1:1", timeout: time.Second, noreply: true}, &out, io.Discard)

	assert.Equal(t, 2, code)
	assert.Contains(t, out.String(), "Fleet: not_supported")
}

func TestRun_PartialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	down := ln.Addr().String()
	require.NoError(t, ln.Close())

	up := textServer(t, "1.10.0")

	var out bytes.Buffer
	code := run(Config{servers: down + "," + up, timeout: 5 * time.Second}, &out, io.Discard)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "error:")
	assert.Contains(t, out.String(), "Fleet: partial_failure")
}

func TestRun_NoServers(t *testing.T) {
	var out bytes.Buffer
	code := run(Config{servers: "", timeout: time.Second}, &out, io.Discard)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Failed to create fleet")
}
