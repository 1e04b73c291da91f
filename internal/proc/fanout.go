// SPDX-License-Identifier: MIT

package proc

import (
	"io"
	"sync"
)

const (
	fanoutChunkSize   = 32 * 1024
	consumerQueueSize = 64 // chunks buffered per consumer before drop-oldest
)

// Fanout broadcasts one stream to many consumers. Each consumer has its own
// bounded queue; when a consumer falls behind, its oldest chunks are dropped
// rather than stalling the source or its peers.
type Fanout struct {
	mu     sync.Mutex
	subs   map[int]*Consumer
	nextID int
	closed bool
}

// NewFanout starts pumping src to future subscribers. The pump stops and all
// consumers see EOF when src returns an error or EOF.
func NewFanout(src io.Reader) *Fanout {
	f := &Fanout{subs: make(map[int]*Consumer)}
	go f.pump(src)
	return f
}

func (f *Fanout) pump(src io.Reader) {
	buf := make([]byte, fanoutChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			f.broadcast(chunk)
		}
		if err != nil {
			f.closeAll()
			return
		}
	}
}

func (f *Fanout) broadcast(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs {
		select {
		case c.ch <- chunk:
		default:
			// Queue full: drop the oldest chunk, then retry once.
			select {
			case <-c.ch:
			default:
			}
			select {
			case c.ch <- chunk:
			default:
			}
		}
	}
}

func (f *Fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, c := range f.subs {
		close(c.ch)
	}
	f.subs = map[int]*Consumer{}
}

// Subscribe attaches a new consumer. A consumer attached after the source
// ended reads immediate EOF.
func (f *Fanout) Subscribe() *Consumer {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := &Consumer{ch: make(chan []byte, consumerQueueSize), fanout: f, id: f.nextID}
	if f.closed {
		close(c.ch)
		return c
	}
	f.subs[f.nextID] = c
	f.nextID++
	return c
}

func (f *Fanout) unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(c.ch)
	}
}

// Consumer is one attached reader of a Fanout. It implements io.ReadCloser.
type Consumer struct {
	ch     chan []byte
	fanout *Fanout
	id     int

	pending []byte
	mu      sync.Mutex
	done    bool
}

// Read delivers broadcast chunks in order, returning io.EOF once the source
// ended or the consumer was closed.
func (c *Consumer) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		chunk, ok := <-c.ch
		if !ok {
			return 0, io.EOF
		}
		c.pending = chunk
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Close detaches the consumer from the fanout. Idempotent.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true
	c.fanout.unsubscribe(c.id)
	return nil
}
