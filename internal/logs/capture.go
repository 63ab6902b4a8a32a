package logs

import (
	"go.uber.org/zap/zapcore"
)

// captureCore is a zapcore.Core that copies every entry at or above its
// level into a Buffer. It is teed with the console core so the monitoring
// API can serve recent logs without touching disk.
type captureCore struct {
	buffer Buffer
	level  zapcore.LevelEnabler
	fields []zapcore.Field
}

// NewCaptureCore creates a zap core that mirrors log entries into buffer.
func NewCaptureCore(buffer Buffer, level zapcore.LevelEnabler) zapcore.Core {
	return &captureCore{buffer: buffer, level: level}
}

// Enabled reports whether the given level is captured.
func (c *captureCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

// With returns a copy of the core carrying the additional fields.
func (c *captureCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &captureCore{
		buffer: c.buffer,
		level:  c.level,
		fields: make([]zapcore.Field, 0, len(c.fields)+len(fields)),
	}
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)

	return clone
}

// Check adds the core to the checked entry when the level is enabled.
func (c *captureCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}

	return checked
}

// Write records the entry into the buffer.
func (c *captureCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}

	for _, field := range fields {
		field.AddTo(enc)
	}

	captured := LogEntry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if len(enc.Fields) > 0 {
		captured.Fields = enc.Fields
	}

	c.buffer.Write(captured)

	return nil
}

// Sync is a no-op; the buffer is memory only.
func (c *captureCore) Sync() error { return nil }
