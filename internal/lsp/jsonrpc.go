package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// maxContentLength bounds a single message; templates are far smaller.
const maxContentLength = 64 << 20

var errMissingContentLength = errors.New("missing Content-Length header")

// readMessage reads one base-protocol message. The header block uses MIME
// syntax, so names match case-insensitively and unknown headers are skipped.
func readMessage(r *bufio.Reader) ([]byte, error) {
	header, err := textproto.NewReader(r).ReadMIMEHeader()
	if err != nil {
		return nil, err
	}
	size, err := contentLength(header)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func contentLength(header textproto.MIMEHeader) (int, error) {
	value := strings.TrimSpace(header.Get("Content-Length"))
	if value == "" {
		return 0, errMissingContentLength
	}
	size, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Length: %w", err)
	}
	if size < 0 {
		return 0, fmt.Errorf("invalid Content-Length: %d", size)
	}
	if size > maxContentLength {
		return 0, fmt.Errorf("message of %d bytes exceeds limit of %d bytes", size, maxContentLength)
	}
	return size, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
