// Package broadcast holds the latest captured frame and wakes any number of
// readers when a newer one is published.
//
// There is exactly one producer. Readers keep only the sequence number of
// the last frame they consumed; the broadcaster keeps no per-reader state,
// so readers come and go without registering.
//
//	b := broadcast.New()
//	go camera.Run(ctx, b)             // producer calls b.Publish(jpeg)
//
//	var last uint64
//	for {
//		frame, err := b.WaitForNext(ctx, last)
//		if err != nil {
//			return err // ctx cancelled
//		}
//		last = frame.Seq
//		write(frame.Data)
//	}
//
// A slow reader never sees a backlog: WaitForNext always hands out the most
// recent frame, skipping whatever was published in between.
package broadcast

import (
	"context"
	"sync"
	"time"
)

// Frame is one complete encoded image. Data must not be modified after
// Publish; it is shared read-only between all readers.
type Frame struct {
	Data       []byte
	Seq        uint64
	CapturedAt time.Time
}

// Broadcaster is a single-slot, single-producer, multi-reader relay.
type Broadcaster struct {
	mu      sync.Mutex
	current *Frame
	seq     uint64
	// changed is closed on every Publish and replaced with a fresh channel.
	changed chan struct{}
}

// New creates an empty broadcaster at generation zero.
func New() *Broadcaster {
	return &Broadcaster{
		changed: make(chan struct{}),
	}
}

// Publish stores data as the current frame and wakes every waiting reader.
// It never blocks on readers. Must be called from a single producer.
func (b *Broadcaster) Publish(data []byte) uint64 {
	frame := &Frame{Data: data, CapturedAt: time.Now()}

	b.mu.Lock()
	b.seq++
	frame.Seq = b.seq
	b.current = frame
	wake := b.changed
	b.changed = make(chan struct{})
	b.mu.Unlock()

	close(wake)
	return frame.Seq
}

// WaitForNext blocks until a frame newer than lastSeen exists and returns
// the latest one. It returns immediately if the producer has already moved
// past lastSeen. The only error is ctx.Err().
func (b *Broadcaster) WaitForNext(ctx context.Context, lastSeen uint64) (*Frame, error) {
	for {
		b.mu.Lock()
		if b.seq > lastSeen {
			frame := b.current
			b.mu.Unlock()
			return frame, nil
		}
		// Grab the channel under the lock so a Publish after Unlock still
		// closes the channel we sleep on.
		wait := b.changed
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Latest returns the current frame without waiting.
func (b *Broadcaster) Latest() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.current != nil
}

// Generation returns the number of frames published so far.
func (b *Broadcaster) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
