// Package channel implements the framed control stream between the setup
// and container sides of a run.
//
// Every message is one frame: a length byte n followed by n bytes of token.
// Readers decode into a fixed buffer that is reset per frame, so a peer
// cannot make the reader accumulate unbounded data.
package channel

import (
	"errors"
	"io"

	appErr "korobok/pkg/errors"
)

// Token is a control message.
type Token string

const (
	// Ready is sent by setup once identity mapping is in place.
	Ready Token = "ready"
	// Finish is sent by the container after the entry command has run.
	Finish Token = "finish"
)

// MaxTokenLen is the largest encodable token.
const MaxTokenLen = 255

// Channel is one direction-pair of the rendezvous: frames are read from r
// and written to w.
type Channel struct {
	r   io.Reader
	w   io.Writer
	buf [MaxTokenLen]byte
}

// New wraps a read end and a write end.
func New(r io.Reader, w io.Writer) *Channel {
	return &Channel{r: r, w: w}
}

// Send writes a single frame.
func (c *Channel) Send(tok Token) error {
	if len(tok) == 0 || len(tok) > MaxTokenLen {
		return appErr.Newf(appErr.InvalidInput, "token length %d out of range", len(tok))
	}
	frame := make([]byte, 0, len(tok)+1)
	frame = append(frame, byte(len(tok)))
	frame = append(frame, tok...)
	if _, err := c.w.Write(frame); err != nil {
		return appErr.Wrapf(err, appErr.IoFailure, "send %q", tok)
	}
	return nil
}

// Receive reads exactly one frame. A peer that closes the stream before a
// complete frame yields a PeerClosed error.
func (c *Channel) Receive() (Token, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return "", readErr(err)
	}
	n := int(hdr[0])
	msg := c.buf[:n]
	if _, err := io.ReadFull(c.r, msg); err != nil {
		return "", readErr(err)
	}
	return Token(msg), nil
}

// WaitFor reads frames until want arrives. Any other token is handed to
// onUnexpected (which may be nil) and otherwise ignored.
func (c *Channel) WaitFor(want Token, onUnexpected func(Token)) error {
	for {
		tok, err := c.Receive()
		if err != nil {
			return err
		}
		if tok == want {
			return nil
		}
		if onUnexpected != nil {
			onUnexpected(tok)
		}
	}
}

// Close closes whichever ends implement io.Closer.
func (c *Channel) Close() error {
	var errs []error
	if cl, ok := c.r.(io.Closer); ok {
		errs = append(errs, cl.Close())
	}
	if cl, ok := c.w.(io.Closer); ok {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return appErr.Wrapf(err, appErr.PeerClosed, "peer closed the control channel")
	}
	return appErr.Wrapf(err, appErr.IoFailure, "read control frame")
}
