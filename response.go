package gatt

import "errors"

// MaxValueLen is the size of the attribute value scratch buffer carried by
// every response handed to the controller. It bounds the value length of a
// single read or write response.
const MaxValueLen = 600

// ErrValueTruncated is returned by ValueBuffer.Write when the data did not
// fit into the remaining capacity.
var ErrValueTruncated = errors.New("attribute value truncated")

// A ValueBuffer is a fixed-size attribute value buffer. Writes past its
// capacity are truncated, never grown.
type ValueBuffer struct {
	b [MaxValueLen]byte
	n int
}

// Write appends as much of p as fits. It returns ErrValueTruncated if
// fewer than len(p) bytes were copied.
func (v *ValueBuffer) Write(p []byte) (int, error) {
	n := copy(v.b[v.n:], p)
	v.n += n
	if n < len(p) {
		return n, ErrValueTruncated
	}
	return n, nil
}

// Bytes returns the valid part of the buffer. The slice aliases the buffer.
func (v *ValueBuffer) Bytes() []byte { return v.b[:v.n] }

// Len returns the number of valid bytes.
func (v *ValueBuffer) Len() int { return v.n }

// Cap returns the buffer capacity.
func (v *ValueBuffer) Cap() int { return len(v.b) }

// Reset empties the buffer.
func (v *ValueBuffer) Reset() { v.n = 0 }

// trimFront drops the first off bytes. It reports false if off lies past
// the end of the value.
func (v *ValueBuffer) trimFront(off int) bool {
	if off == 0 {
		return true
	}
	if off > v.n {
		return false
	}
	v.n = copy(v.b[:], v.b[off:v.n])
	return true
}

// A Response is the attribute value handed to Controller.SendResponse.
type Response struct {
	Handle  uint16
	Offset  uint16
	AuthReq uint8
	Value   ValueBuffer
}

// ReadResponseWriter collects the value returned for a read request.
type ReadResponseWriter interface {
	// Write writes data to return as the characteristic value.
	// Data beyond the response capacity is dropped.
	Write([]byte) (int, error)
	// SetStatus reports the result of the read operation. See the Status* constants.
	SetStatus(Status)
}

// readResponseWriter is the default implementation of ReadResponseWriter.
type readResponseWriter struct {
	rsp    *Response
	status Status
}

func newReadResponseWriter(rsp *Response) *readResponseWriter {
	return &readResponseWriter{rsp: rsp, status: StatusSuccess}
}

func (w *readResponseWriter) Write(b []byte) (int, error) { return w.rsp.Value.Write(b) }
func (w *readResponseWriter) SetStatus(status Status)     { w.status = status }
