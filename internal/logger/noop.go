package logger

// Noop is a logger that discards everything. Useful in tests.
type Noop struct{}

// NewNoop creates a new no-op logger.
func NewNoop() Interface { return &Noop{} }

// Debug does nothing.
func (n *Noop) Debug(string, ...any) {}

// Info does nothing.
func (n *Noop) Info(string, ...any) {}

// Warn does nothing.
func (n *Noop) Warn(string, ...any) {}

// Error does nothing.
func (n *Noop) Error(string, ...any) {}

// Fatal does nothing.
func (n *Noop) Fatal(string, ...any) {}

// With returns the receiver.
func (n *Noop) With(...any) Interface { return n }

// WithComponent returns the receiver.
func (n *Noop) WithComponent(string) Interface { return n }

// WithError returns the receiver.
func (n *Noop) WithError(error) Interface { return n }
