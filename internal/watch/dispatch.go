package watch

// SignalKind is the notification kind a turn produced.
type SignalKind string

const (
	// KindComplete means the assistant finished its turn.
	KindComplete SignalKind = "complete"
	// KindConfirm means the assistant is waiting on the user.
	KindConfirm SignalKind = "confirm"
)

// Signal is the single narrow boundary between the turn machines and the
// delivery layer. A turn emits at most one signal per kind, and the kinds
// are mutually exclusive per turn.
type Signal struct {
	Source           string
	Kind             SignalKind
	TaskInfo         string
	DurationMs       int64 // negative when unknown
	Cwd              string
	OutputContent    string
	UserMessage      string
	AssistantMessage string
}

// Dispatcher delivers one signal. Implementations must not assume they are
// called on any particular goroutine; the session fires dispatches without
// blocking the poll loop.
type Dispatcher func(sig Signal)

// durationUnknown is the DurationMs value for "could not be computed".
const durationUnknown int64 = -1

// durationBetween computes end-start, or unknown when either side is
// missing or the difference would be negative.
func durationBetween(start, end int64) int64 {
	if start == 0 || end == 0 || end < start {
		return durationUnknown
	}
	return end - start
}
