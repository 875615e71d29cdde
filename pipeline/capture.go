package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCapture collects log entries as report lines of the form
// "[region] LEVEL message key=value ...".  Debug entries are not captured.
type LogCapture struct {
	lock  sync.Mutex
	lines []string
}

func NewLogCapture() *LogCapture {
	return &LogCapture{}
}

func (c *LogCapture) Lines() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.lines...)
}

func (c *LogCapture) add(line string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lines = append(c.lines, line)
}

// Attach returns a logger that writes to both logger and the capture.
func (c *LogCapture) Attach(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &captureCore{
			LevelEnabler: zapcore.InfoLevel,
			capture:      c,
		})
	}))
}

type captureCore struct {
	zapcore.LevelEnabler
	capture *LogCapture
	fields  []zapcore.Field
}

var _ zapcore.Core = (*captureCore)(nil)

func (c *captureCore) With(fields []zapcore.Field) zapcore.Core {
	return &captureCore{
		LevelEnabler: c.LevelEnabler,
		capture:      c.capture,
		fields:       append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c *captureCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *captureCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.capture.add(formatLine(ent, append(append([]zapcore.Field(nil), c.fields...), fields...)))
	return nil
}

func (c *captureCore) Sync() error {
	return nil
}

func formatLine(ent zapcore.Entry, fields []zapcore.Field) string {
	var sb strings.Builder
	var region string
	var pairs []string

	for _, field := range fields {
		enc := zapcore.NewMapObjectEncoder()
		field.AddTo(enc)

		keys := make([]string, 0, len(enc.Fields))
		for key := range enc.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if strings.HasSuffix(key, "Verbose") {
				continue
			}
			if key == "region" {
				region = fmt.Sprint(enc.Fields[key])
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s=%v", key, enc.Fields[key]))
		}
	}

	if region != "" {
		sb.WriteString("[" + region + "] ")
	}
	if ent.Level >= zapcore.WarnLevel {
		sb.WriteString(ent.Level.CapitalString() + " ")
	}
	sb.WriteString(ent.Message)
	for _, pair := range pairs {
		sb.WriteString(" " + pair)
	}

	return sb.String()
}
