package gatt

import (
	"bytes"
	"fmt"
	"testing"
)

func TestValueBufferSaturates(t *testing.T) {
	var v ValueBuffer
	big := bytes.Repeat([]byte{0xaa}, MaxValueLen+10)

	n, err := v.Write(big[:10])
	if n != 10 || err != nil {
		t.Fatalf("Write(10): got (%d, %v)", n, err)
	}
	n, err = v.Write(big)
	if n != MaxValueLen-10 || err != ErrValueTruncated {
		t.Fatalf("Write(%d): got (%d, %v) want (%d, %v)", len(big), n, err, MaxValueLen-10, ErrValueTruncated)
	}
	if v.Len() != MaxValueLen {
		t.Errorf("Len: got %d want %d", v.Len(), MaxValueLen)
	}
	n, err = v.Write([]byte{1})
	if n != 0 || err != ErrValueTruncated {
		t.Errorf("Write on full buffer: got (%d, %v)", n, err)
	}

	v.Reset()
	if v.Len() != 0 || len(v.Bytes()) != 0 {
		t.Errorf("Reset: buffer still holds %d bytes", v.Len())
	}
}

func TestValueBufferTrimFront(t *testing.T) {
	cases := []struct {
		value []byte
		off   int
		want  []byte
		ok    bool
	}{
		{value: []byte{1, 2, 3}, off: 0, want: []byte{1, 2, 3}, ok: true},
		{value: []byte{1, 2, 3}, off: 1, want: []byte{2, 3}, ok: true},
		{value: []byte{1, 2, 3}, off: 3, want: []byte{}, ok: true},
		{value: []byte{1, 2, 3}, off: 4, ok: false},
		{value: nil, off: 0, want: []byte{}, ok: true},
	}

	for _, tt := range cases {
		var v ValueBuffer
		v.Write(tt.value)
		ok := v.trimFront(tt.off)
		if ok != tt.ok {
			t.Errorf("trimFront(%v, %d): got ok=%v want %v", tt.value, tt.off, ok, tt.ok)
			continue
		}
		if ok && !bytes.Equal(v.Bytes(), tt.want) {
			t.Errorf("trimFront(%v, %d): got %v want %v", tt.value, tt.off, v.Bytes(), tt.want)
		}
	}
}

func TestReadResponseWriter(t *testing.T) {
	rsp := new(Response)
	w := newReadResponseWriter(rsp)
	fmt.Fprintf(w, "count: %d", 7)
	w.SetStatus(StatusInsufficientAuthz)

	if got := string(rsp.Value.Bytes()); got != "count: 7" {
		t.Errorf("value: got %q", got)
	}
	if w.status != StatusInsufficientAuthz {
		t.Errorf("status: got %v", w.status)
	}
}
