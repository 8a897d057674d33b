// Package telemetry records step timings of slow requests as JSON lines, one
// file per operation.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"timecapsule/pkg/logger"
	"timecapsule/pkg/timeutil"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

type Trace struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Steps    []Step    `json:"steps"`
	TotalMS  float64   `json:"total_ms"`
	lastMark time.Time
	rec      *Recorder
}

// Options tunes a Recorder. Zero values pick the defaults.
type Options struct {
	// traces faster than this are dropped
	SlowThreshold time.Duration
	FlushInterval time.Duration
	MaxFileSize   int64
	BufferSize    int
	QueueCapacity int
}

// Recorder writes finished traces from a background goroutine. A nil
// Recorder accepts traces and discards them.
type Recorder struct {
	dir  string
	opts Options

	mu      sync.Mutex
	files   map[string]*os.File
	buffers map[string]*bufio.Writer

	traces   chan *Trace
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Uint64
}

// New creates dir and starts the writer.
func New(dir string, opts Options) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 10 << 20
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32 << 10
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1024
	}
	r := &Recorder{
		dir:     dir,
		opts:    opts,
		files:   make(map[string]*os.File),
		buffers: make(map[string]*bufio.Writer),
		traces:  make(chan *Trace, opts.QueueCapacity),
		stopCh:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writerLoop()
	return r, nil
}

// Track starts a trace named after the operation.
func (r *Recorder) Track(name string) *Trace {
	now := timeutil.Now()
	return &Trace{Name: name, Start: now, lastMark: now, rec: r}
}

// Dropped counts traces discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Mark records the time elapsed since the previous mark.
func (tr *Trace) Mark(label string) {
	now := timeutil.Now()
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: ms(now.Sub(tr.lastMark))})
	tr.lastMark = now
}

// Finish closes the trace and queues it when it was slow. Calling it more
// than once has no effect.
func (tr *Trace) Finish() {
	r := tr.rec
	if r == nil {
		return
	}
	tr.rec = nil
	total := timeutil.Now().Sub(tr.Start)
	if total < r.opts.SlowThreshold {
		return
	}
	tr.TotalMS = ms(total)
	var sum float64
	for _, s := range tr.Steps {
		sum += s.Duration
	}
	if rest := tr.TotalMS - sum; rest > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: rest})
	}
	select {
	case r.traces <- tr:
	default:
		r.dropped.Add(1)
	}
}

func ms(d time.Duration) float64 { return d.Seconds() * 1000 }

func (r *Recorder) writerLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case tr := <-r.traces:
			r.write(tr)
		case <-ticker.C:
			r.flush()
		case <-r.stopCh:
			for {
				select {
				case tr := <-r.traces:
					r.write(tr)
					continue
				default:
				}
				break
			}
			r.mu.Lock()
			for _, b := range r.buffers {
				_ = b.Flush()
			}
			for _, f := range r.files {
				_ = f.Sync()
				_ = f.Close()
			}
			r.mu.Unlock()
			return
		}
	}
}

func (r *Recorder) write(tr *Trace) {
	data, err := json.Marshal(tr)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.bufferFor(tr.Name)
	if err != nil {
		logger.Warn("telemetry_open_failed", "op", tr.Name, "error", err)
		return
	}
	_, _ = b.Write(data)
	_ = b.WriteByte('\n')
}

// flush writes buffers out and truncates files past the size cap.
func (r *Recorder) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, b := range r.buffers {
		_ = b.Flush()
		f := r.files[name]
		fi, err := f.Stat()
		if err != nil || fi.Size() <= r.opts.MaxFileSize {
			continue
		}
		_ = f.Close()
		nf, err := os.OpenFile(f.Name(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			delete(r.files, name)
			delete(r.buffers, name)
			continue
		}
		r.files[name] = nf
		r.buffers[name] = bufio.NewWriterSize(nf, r.opts.BufferSize)
		logger.Info("telemetry_truncated", "op", name, "max_bytes", r.opts.MaxFileSize)
	}
}

func (r *Recorder) bufferFor(op string) (*bufio.Writer, error) {
	if b, ok := r.buffers[op]; ok {
		return b, nil
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s.jsonl", op))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	b := bufio.NewWriterSize(f, r.opts.BufferSize)
	r.files[op] = f
	r.buffers[op] = b
	return b, nil
}

// Close drains queued traces and flushes every file.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}
