package downloader

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// stallWatch cancels an attempt once no progress has been made for idle.
// Progress is any successful body read; the timer starts with the request so
// it also covers connecting and waiting for headers.
type stallWatch struct {
	idle   time.Duration
	timer  *time.Timer
	cancel context.CancelFunc
	hit    atomic.Bool
}

func newStallWatch(ctx context.Context, idle time.Duration) (context.Context, *stallWatch) {
	ctx, cancel := context.WithCancel(ctx)
	w := &stallWatch{idle: idle, cancel: cancel}
	if idle > 0 {
		w.timer = time.AfterFunc(idle, func() {
			w.hit.Store(true)
			cancel()
		})
	}
	return ctx, w
}

func (w *stallWatch) touch() {
	if w.timer != nil {
		w.timer.Reset(w.idle)
	}
}

func (w *stallWatch) fired() bool {
	return w.hit.Load()
}

func (w *stallWatch) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.cancel()
}

func (w *stallWatch) reader(r io.Reader) io.Reader {
	return &watchedReader{r: r, w: w}
}

type watchedReader struct {
	r io.Reader
	w *stallWatch
}

func (r *watchedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.w.touch()
	}
	return n, err
}
