// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// maxPartCount is the largest declared part count Receive will accept.
// The reserve operation carries one part per itinerary city plus two
// dates; anything near this limit is a malformed or hostile stream.
const maxPartCount = 1024

// maxPartLength is the largest single part Receive will accept. Parts
// hold city names, dates, ids, and CBOR-encoded entities; 1 MiB is
// generous for all of them.
const maxPartLength = 1 << 20

// Frame is one tagged, multi-part message. The tag identifies the
// operation; responses echo the request's tag.
type Frame struct {
	Tag   int32
	Parts [][]byte
}

// Conn frames messages over a byte stream. The wire layout is
//
//	tag:int32 | partCount:int32 | {length:int32, bytes} × partCount
//
// with all integers big-endian. Send and Receive each serialize their
// concurrent callers, so frames from different goroutines never
// interleave on the stream. Any I/O error is fatal to the connection:
// it is surfaced to the caller and the stream is unusable afterward.
type Conn struct {
	stream io.Closer

	writeMu sync.Mutex
	writer  *bufio.Writer

	readMu sync.Mutex
	reader *bufio.Reader
}

// NewConn wraps a byte stream (normally a net.Conn) in a framed
// connection.
func NewConn(stream io.ReadWriteCloser) *Conn {
	return &Conn{
		stream: stream,
		writer: bufio.NewWriter(stream),
		reader: bufio.NewReader(stream),
	}
}

// Send writes one complete frame atomically with respect to other
// Send calls on the same connection.
func (c *Conn) Send(tag int32, parts [][]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := writeInt32(c.writer, tag); err != nil {
		return fmt.Errorf("writing frame tag: %w", err)
	}
	if err := writeInt32(c.writer, int32(len(parts))); err != nil {
		return fmt.Errorf("writing part count: %w", err)
	}
	for _, part := range parts {
		if err := writeInt32(c.writer, int32(len(part))); err != nil {
			return fmt.Errorf("writing part length: %w", err)
		}
		if _, err := c.writer.Write(part); err != nil {
			return fmt.Errorf("writing part bytes: %w", err)
		}
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("flushing frame: %w", err)
	}
	return nil
}

// Receive blocks until one complete frame is available and returns it.
// A declared part count or part length beyond the defensive limits is
// an error: the stream is malformed and the connection must be torn
// down rather than allocate unbounded memory on its say-so.
func (c *Conn) Receive() (Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	tag, err := readInt32(c.reader)
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame tag: %w", err)
	}
	partCount, err := readInt32(c.reader)
	if err != nil {
		return Frame{}, fmt.Errorf("reading part count: %w", err)
	}
	if partCount < 0 || partCount > maxPartCount {
		return Frame{}, fmt.Errorf("declared part count %d outside [0, %d]", partCount, maxPartCount)
	}

	parts := make([][]byte, 0, partCount)
	for i := int32(0); i < partCount; i++ {
		length, err := readInt32(c.reader)
		if err != nil {
			return Frame{}, fmt.Errorf("reading part %d length: %w", i, err)
		}
		if length < 0 || length > maxPartLength {
			return Frame{}, fmt.Errorf("declared part %d length %d outside [0, %d]", i, length, maxPartLength)
		}
		part := make([]byte, length)
		if _, err := io.ReadFull(c.reader, part); err != nil {
			return Frame{}, fmt.Errorf("reading part %d bytes: %w", i, err)
		}
		parts = append(parts, part)
	}
	return Frame{Tag: tag, Parts: parts}, nil
}

// Close closes the underlying stream. A Receive blocked on the stream
// unblocks with an error.
func (c *Conn) Close() error {
	return c.stream.Close()
}

func writeInt32(w io.Writer, v int32) error {
	var buffer [4]byte
	binary.BigEndian.PutUint32(buffer[:], uint32(v))
	_, err := w.Write(buffer[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var buffer [4]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buffer[:])), nil
}

// Int32Part encodes v as a 4-byte big-endian frame part (the layout
// used for route capacity).
func Int32Part(v int32) []byte {
	var buffer [4]byte
	binary.BigEndian.PutUint32(buffer[:], uint32(v))
	return buffer[:]
}

// ParseInt32Part decodes a 4-byte big-endian frame part.
func ParseInt32Part(part []byte) (int32, error) {
	if len(part) != 4 {
		return 0, fmt.Errorf("int32 part must be 4 bytes, got %d", len(part))
	}
	return int32(binary.BigEndian.Uint32(part)), nil
}
