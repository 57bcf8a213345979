package source

import (
	"fmt"
	"sync"
	"time"
)

// Severity classifies a bus message.
type Severity int

const (
	// SeverityWarning is a diagnostic that does not abort anything.
	SeverityWarning Severity = iota
	// SeverityError is a failure report from a source instance.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Message domains.
const (
	DomainResource = "resource"
	DomainLibrary  = "library"
	DomainStream   = "stream"
)

// Message codes.
const (
	CodeNotFound = "not-found"
	CodeOpenRead = "open-read"
	CodeInit     = "init"
	CodeFailed   = "failed"
)

// Message is a diagnostic posted by a source instance.
type Message struct {
	Severity Severity
	Domain   string
	Code     string
	Source   string
	Text     string
	Debug    string
	Time     time.Time
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s/%s from %s: %s", m.Severity, m.Domain, m.Code, m.Source, m.Text)
}

// Bus is an ordered diagnostic message queue. A bus is exclusively owned
// by whoever created it: during probing one fresh bus is attached per
// attempt and discarded with it, so messages from different candidates
// never mix.
type Bus struct {
	mu   sync.Mutex
	msgs []Message
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Post appends a message, stamping its time if unset.
func (b *Bus) Post(m Message) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

// Drain returns all queued messages in arrival order and empties the bus.
func (b *Bus) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.msgs
	b.msgs = nil
	return msgs
}

// Len returns the number of queued messages.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}
