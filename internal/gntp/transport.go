package gntp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// MaxResponseBytes bounds how much TCPTransport reads for one response.
const MaxResponseBytes = 64 * 1024

// Transport exchanges one encoded request for one raw response.
type Transport interface {
	RoundTrip(ctx context.Context, addr string, request []byte) ([]byte, error)
}

// TCPTransport opens one TCP connection per request.
type TCPTransport struct {
	Timeout time.Duration
	dialer  net.Dialer
}

// NewTCPTransport returns a transport whose exchanges are bounded by timeout
// (zero means only the context bounds them).
func NewTCPTransport(timeout time.Duration) *TCPTransport {
	return &TCPTransport{Timeout: timeout}
}

// RoundTrip writes request to addr and reads until the response's
// terminating blank line (or sealed block) or EOF.
func (t *TCPTransport) RoundTrip(ctx context.Context, addr string, request []byte) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("write %s: %w", addr, err)
	}
	resp, err := readResponse(bufio.NewReader(io.LimitReader(conn, MaxResponseBytes+1)))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("read %s: %w", addr, err)
	}
	return resp, nil
}

// readResponse collects lines up to the first blank line that follows the
// info line. An encrypted response may hold blank lines inside its
// ciphertext, so it is read up to the block-aligned CRLF CRLF instead.
func readResponse(r *bufio.Reader) ([]byte, error) {
	var out []byte
	bodyStart, blockSize := -1, 0
	for {
		line, err := r.ReadBytes('\n')
		out = append(out, line...)
		if len(out) > MaxResponseBytes {
			return nil, ErrResponseTooLarge
		}
		trimmed := trimEOL(line)
		switch {
		case bodyStart < 0:
			if len(trimmed) > 0 {
				bodyStart = len(out)
				blockSize = sealedBlockSize(string(trimmed))
			}
		case blockSize > 0:
			if sealedEnd(out[bodyStart:], blockSize) >= 0 {
				return out, nil
			}
		case len(trimmed) == 0 && err == nil:
			return out, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && bodyStart >= 0 {
				return out, nil
			}
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// sealedBlockSize returns the cipher block size named by an info line, or
// zero when the message is not encrypted.
func sealedBlockSize(info string) int {
	parsed, err := parseInfoLine(info)
	if err != nil || parsed.encryption == EncryptionNone {
		return 0
	}
	ciph, err := parsed.encryption.cipher()
	if err != nil {
		return 0
	}
	return ciph.BlockSize()
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// Address returns host with DefaultPort appended when host has no port.
func Address(host string) string {
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}
