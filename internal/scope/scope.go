package scope

type Scope int

const (
	Unscoped Scope = iota
	Singleton
	Request
)

func (s Scope) String() string {
	switch s {
	case Unscoped:
		return "unscoped"
	case Singleton:
		return "singleton"
	case Request:
		return "request"
	default:
		return "unknown"
	}
}
