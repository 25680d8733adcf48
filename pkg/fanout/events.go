package fanout

import "sync"

// Code is the state carried by a status event
type Code int

const (
	Failed     Code = -1
	InProgress Code = 0
	Success    Code = 1
)

func (c Code) String() string {
	switch c {
	case Failed:
		return "failed"
	case Success:
		return "success"
	default:
		return "in progress"
	}
}

// ProgressEvent reports cumulative bytes for one endpoint's job.
// BytesTotal == 0 means the total is unknown.
type ProgressEvent struct {
	Host       string
	BytesDone  uint64
	BytesTotal uint64
}

// StatusEvent reports a state change for one endpoint
type StatusEvent struct {
	Host    string
	Message string
	Code    Code
}

// ProgressSink receives progress events from many goroutines at once
type ProgressSink interface {
	Progress(ProgressEvent)
}

// StatusSink receives status events from many goroutines at once
type StatusSink interface {
	Status(StatusEvent)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) Progress(e ProgressEvent) { f(e) }

// StatusFunc adapts a function to StatusSink
type StatusFunc func(StatusEvent)

func (f StatusFunc) Status(e StatusEvent) { f(e) }

type nopSink struct{}

func (nopSink) Progress(ProgressEvent) {}
func (nopSink) Status(StatusEvent)     {}

// Recorder keeps every event in arrival order
type Recorder struct {
	mu       sync.Mutex
	progress []ProgressEvent
	statuses []StatusEvent
}

func (r *Recorder) Progress(e ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, e)
}

func (r *Recorder) Status(e StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, e)
}

// ProgressFor returns the progress events of one host
func (r *Recorder) ProgressFor(host string) []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProgressEvent
	for _, e := range r.progress {
		if e.Host == host {
			out = append(out, e)
		}
	}
	return out
}

// StatusesFor returns the status events of one host
func (r *Recorder) StatusesFor(host string) []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StatusEvent
	for _, e := range r.statuses {
		if e.Host == host {
			out = append(out, e)
		}
	}
	return out
}

// LastProgress returns the most recent progress event of a host
func (r *Recorder) LastProgress(host string) (ProgressEvent, bool) {
	events := r.ProgressFor(host)
	if len(events) == 0 {
		return ProgressEvent{}, false
	}
	return events[len(events)-1], true
}

// Event is either a progress or a status update
type Event struct {
	Progress *ProgressEvent
	Status   *StatusEvent
}

// ChannelSink forwards events to a channel, for consumers such as a UI loop
// that want a single stream. Sends block while the buffer is full, and
// Distribute reports skipped profiles before it returns, so either buffer for
// them or read from another goroutine.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink with the given channel buffer
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

func (s *ChannelSink) Progress(e ProgressEvent) {
	s.C <- Event{Progress: &e}
}

func (s *ChannelSink) Status(e StatusEvent) {
	s.C <- Event{Status: &e}
}
