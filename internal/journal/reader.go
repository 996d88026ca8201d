package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"main/internal/schema"
)

var ErrChecksumMismatch = errors.New("journal checksum mismatch")

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal records sequentially.
type Reader struct {
	src       *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

// NewReader wraps an io.Reader with journal decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		src:       bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next record header and payload. A clean end of input
// surfaces as io.EOF. The payload is only valid until the next call.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	if n, err := io.ReadFull(r.src, r.headerBuf); err != nil {
		if err == io.EOF && n == 0 {
			return schema.EventHeader{}, nil, io.EOF
		}
		return schema.EventHeader{}, nil, err
	}

	header, payloadLen, err := decodeRecordHeader(r.headerBuf)
	if err != nil {
		return header, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return header, nil, ErrPayloadTooLarge
	}

	if err := r.readPayload(int(payloadLen)); err != nil {
		return header, nil, err
	}

	var sumBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.src, sumBuf[:]); err != nil {
		return header, nil, err
	}
	if !r.opts.DisableChecksum {
		if checksum(r.headerBuf, r.payload) != binary.LittleEndian.Uint32(sumBuf[:]) {
			return header, nil, ErrChecksumMismatch
		}
	}
	return header, r.payload, nil
}

func (r *Reader) readPayload(n int) error {
	if n == 0 {
		r.payload = r.payload[:0]
		return nil
	}
	if cap(r.payload) < n {
		r.payload = make([]byte, n)
	}
	r.payload = r.payload[:n]
	_, err := io.ReadFull(r.src, r.payload)
	return err
}
