package broker

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxFrames limits the number of frames in one message.
	MaxFrames = 64

	// MaxFrameLen limits the size of a single frame (8 MiB).
	MaxFrameLen = 8 << 20

	// maxHeaderLen bounds a "*<n>" or "$<n>" header line.
	maxHeaderLen = 64
)

var (
	ErrProtocol      = errors.New("broker: protocol error")
	ErrLimitExceeded = errors.New("broker: limit exceeded")
)

// ReadMessage reads one message: an array of bulk strings. A null bulk
// string is read as an empty frame. An empty array yields a nil message.
func ReadMessage(r *bufio.Reader) ([][]byte, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, fmt.Errorf("%w: expected array", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxFrames {
		return nil, fmt.Errorf("%w: %d frames exceeds limit %d", ErrLimitExceeded, n, MaxFrames)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		f, err := readFrame(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n == -1 {
		return []byte{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxFrameLen {
		return nil, fmt.Errorf("%w: frame length %d exceeds limit %d", ErrLimitExceeded, n, MaxFrameLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// WriteMessage writes frames as an array of bulk strings. The caller
// flushes w.
func WriteMessage(w *bufio.Writer, frames [][]byte) error {
	if len(frames) > MaxFrames {
		return fmt.Errorf("%w: %d frames exceeds limit %d", ErrLimitExceeded, len(frames), MaxFrames)
	}
	if _, err := w.WriteString("*" + strconv.Itoa(len(frames)) + "\r\n"); err != nil {
		return err
	}
	for _, f := range frames {
		if _, err := w.WriteString("$" + strconv.Itoa(len(f)) + "\r\n"); err != nil {
			return err
		}
		if _, err := w.Write(f); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return nil
}
