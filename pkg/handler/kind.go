package handler

// Kind classifies how a callable is scheduled.
type Kind uint8

const (
	// KindSync callables run on the goroutine serving the connection.
	KindSync Kind = iota

	// KindAsync callables return a Future that is awaited without holding
	// the connection goroutine in user code.
	KindAsync

	// KindOffload callables are synchronous but run on the offload pool.
	KindOffload
)

// String returns the kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindOffload:
		return "offload"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "sync", "":
		return KindSync, true
	case "async":
		return KindAsync, true
	case "offload":
		return KindOffload, true
	}
	return KindSync, false
}
