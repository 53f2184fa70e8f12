// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"sync"

	"github.com/flightline-io/flightline/wire"
)

// Demux lets many concurrent logical calls share one framed
// connection. A single background reader drains the connection and
// appends each arriving payload to a per-tag FIFO queue; Receive
// blocks until its tag's queue is non-empty.
//
// Correlation is by request-type tag, not per-call id: for a fixed
// tag, the Nth send is matched to the Nth response for that tag. Two
// concurrent calls with the same tag therefore each get one of the two
// responses, in arrival order, with no guarantee about which. Callers
// that need call-level correlation must not issue same-tag calls
// concurrently.
type Demux struct {
	conn *wire.Conn

	mu      sync.Mutex
	entries map[int32]*tagEntry
	// err poisons the demultiplexer after a reader I/O failure. It is
	// delivered to every current and future Receive instead of letting
	// waiters hang on a dead connection.
	err error
}

// tagEntry is the bookkeeping for one tag: queued payloads and a
// condition the waiters block on. The entry is garbage-collected once
// its queue is empty and nothing is waiting.
type tagEntry struct {
	queue   [][][]byte
	waiters int
	ready   *sync.Cond
}

// NewDemux wraps a framed connection and starts the background
// reader.
func NewDemux(conn *wire.Conn) *Demux {
	d := &Demux{
		conn:    conn,
		entries: make(map[int32]*tagEntry),
	}
	go d.readLoop()
	return d
}

// Send writes one request frame. The codec serializes concurrent
// senders, so no extra locking happens here.
func (d *Demux) Send(tag int32, parts [][]byte) error {
	return d.conn.Send(tag, parts)
}

// Receive blocks until a response frame for tag arrives and returns
// its parts (oldest first for that tag). Once the connection has
// failed, Receive returns the recorded failure immediately.
func (d *Demux) Receive(tag int32) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.entry(tag)
	entry.waiters++
	for {
		if len(entry.queue) > 0 {
			payload := entry.queue[0]
			entry.queue = entry.queue[1:]
			d.release(tag, entry)
			return payload, nil
		}
		if d.err != nil {
			d.release(tag, entry)
			return nil, d.err
		}
		entry.ready.Wait()
	}
}

// Close tears down the connection. The background reader observes the
// closed stream and poisons every pending and future Receive.
func (d *Demux) Close() error {
	return d.conn.Close()
}

// entry returns the tag's bookkeeping, creating it if absent. Callers
// hold d.mu.
func (d *Demux) entry(tag int32) *tagEntry {
	entry, ok := d.entries[tag]
	if !ok {
		entry = &tagEntry{ready: sync.NewCond(&d.mu)}
		d.entries[tag] = entry
	}
	return entry
}

// release drops one waiter and garbage-collects the entry when both
// its queue and its waiter count reach zero. Callers hold d.mu.
func (d *Demux) release(tag int32, entry *tagEntry) {
	entry.waiters--
	if entry.waiters == 0 && len(entry.queue) == 0 {
		delete(d.entries, tag)
	}
}

// readLoop is the background reader: it demultiplexes arriving frames
// into the per-tag queues until the connection fails, then records the
// failure and wakes everyone.
func (d *Demux) readLoop() {
	for {
		frame, err := d.conn.Receive()
		if err != nil {
			d.mu.Lock()
			d.err = fmt.Errorf("connection reader: %w", err)
			for _, entry := range d.entries {
				entry.ready.Broadcast()
			}
			d.mu.Unlock()
			return
		}

		d.mu.Lock()
		entry := d.entry(frame.Tag)
		entry.queue = append(entry.queue, frame.Parts)
		entry.ready.Signal()
		d.mu.Unlock()
	}
}
