package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize guards against a corrupt or malicious length prefix
// causing an unbounded allocation.
const maxMessageSize = 64 << 20

// Encoder writes length-framed Messages to an underlying writer: a
// 4-byte big-endian length prefix followed by that many bytes of JSON.
// Safe for concurrent use: each send holds an internal mutex across the
// frame's write and flush, so one frame is never interleaved with another.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Send marshals msg and writes one length-prefixed frame.
func (e *Encoder) Send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := e.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	return e.w.Flush()
}

// SendMethod is a convenience wrapper combining Encode and Send.
func (e *Encoder) SendMethod(method Method, params any) error {
	msg, err := Encode(method, params)
	if err != nil {
		return err
	}
	return e.Send(msg)
}

// Decoder reads length-framed Messages from an underlying reader.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Recv blocks until one full frame has been read and decoded.
func (d *Decoder) Recv() (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageSize {
		return Message{}, fmt.Errorf("protocol: frame of %d bytes exceeds %d byte limit", n, maxMessageSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg, nil
}

// Unmarshal decodes msg.Params into v.
func Unmarshal(msg Message, v any) error {
	if len(msg.Params) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Params, v)
}
