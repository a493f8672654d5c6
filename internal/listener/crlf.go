package listener

import (
	"bytes"
	"io"
)

// lineEndings adapts a terminal connection to plain "\n" lines: input CR and
// CRLF become LF, and output LF becomes CRLF. Telnet sends CRLF, SSH without a
// PTY may send a bare CR.
type lineEndings struct {
	rw io.ReadWriter

	// A CR ended the previous read, so an LF starting this one is its pair.
	afterCR bool
}

func newLineEndings(rw io.ReadWriter) io.ReadWriter {
	return &lineEndings{rw: rw}
}

func (c *lineEndings) Read(p []byte) (int, error) {
	n, err := c.rw.Read(p)
	if n == 0 {
		return n, err
	}

	out := p[:0]
	for _, b := range p[:n] {
		switch {
		case b == '\n' && c.afterCR:
			c.afterCR = false
		case b == '\r':
			c.afterCR = true
			out = append(out, '\n')
		default:
			c.afterCR = false
			out = append(out, b)
		}
	}
	return len(out), err
}

func (c *lineEndings) Write(p []byte) (int, error) {
	_, err := c.rw.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	// Report the caller's length so the size change is invisible.
	return len(p), err
}
