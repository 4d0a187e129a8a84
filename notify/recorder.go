package notify

import "sync"

// Recorder keeps every notice in memory. Handy for tests and for the CLI, where there is
// no UI feed to deliver to.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Info(msg string)  { r.add(LevelInfo, msg) }
func (r *Recorder) Warn(msg string)  { r.add(LevelWarning, msg) }
func (r *Recorder) Error(msg string) { r.add(LevelError, msg) }

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Messages returns only the message texts, in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Message)
	}
	return out
}

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: msg})
}
