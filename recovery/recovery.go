package recovery

import "context"

// Strategy decides how a recoverable problem found while reading or merging
// a document is handled.
type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}

// Continue reports whether the caller should carry on past the problem.
func (a Action) Continue() bool { return a != ActionFail }

// Default returns s, or a strict strategy when s is nil.
func Default(s Strategy) Strategy {
	if s == nil {
		return NewStrictStrategy()
	}
	return s
}
