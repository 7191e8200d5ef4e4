package trace

import "time"

// Kind is the type of an event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	ScopeDriver Scope = iota + 1 // one CLI command or pipeline run
	ScopePass                    // one pass over a whole program
	ScopeLoop                    // a decision about one loop
	ScopeNode                    // a single simplification inside a loop
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePass:
		return "pass"
	case ScopeLoop:
		return "loop"
	case ScopeNode:
		return "node"
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // process-wide, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans and points
	GID      uint64
	Name     string // e.g. "partition", "trim", "verify"
	Detail   string
	Extra    map[string]string
}
