package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type wireMode int

const (
	wireModeFramed wireMode = iota
	wireModeJSONLine
)

func writeFramedMessage(w *bufio.Writer, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := w.WriteString(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

// writeMessage answers in the framing the peer used.
func writeMessage(w *bufio.Writer, msg any, mode wireMode) error {
	if mode == wireModeJSONLine {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		return w.Flush()
	}
	return writeFramedMessage(w, msg)
}

func readMessage(r *bufio.Reader) ([]byte, wireMode, error) {
	mode, err := detectWireMode(r)
	if err != nil {
		return nil, wireModeFramed, err
	}
	if mode == wireModeJSONLine {
		return readJSONLineMessage(r)
	}
	payload, err := readFramedMessage(r)
	return payload, wireModeFramed, err
}

func detectWireMode(r *bufio.Reader) (wireMode, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return wireModeFramed, err
		}
		if !unicode.IsSpace(rune(b[0])) {
			break
		}
		_, _ = r.ReadByte()
	}

	peek, err := r.Peek(16)
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) && !errors.Is(err, io.EOF) {
		return wireModeFramed, err
	}
	if strings.HasPrefix(strings.ToLower(string(peek)), "content-length:") {
		return wireModeFramed, nil
	}
	return wireModeJSONLine, nil
}

func readJSONLineMessage(r *bufio.Reader) ([]byte, wireMode, error) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, wireModeJSONLine, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, wireModeJSONLine, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, wireModeJSONLine, io.EOF
		}
	}
}

func readFramedMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength <= 0 {
		return nil, errors.New("missing or invalid Content-Length")
	}

	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
