package yangbind

import (
	"time"

	"github.com/lukeod/yangbind/internal/ly"
	"github.com/rs/zerolog"
)

// record is the native log callback. It runs inside native calls and only
// queues plain data; the queue is drained once the call has returned.
func (c *Context) record(r ly.Record) {
	c.qmu.Lock()
	c.queue = append(c.queue, ErrorItem{
		Level:      levelOf(r.Level),
		Code:       Code(r.Code),
		VECode:     ValidationCode(r.VECode),
		Message:    r.Msg,
		DataPath:   r.DataPath,
		SchemaPath: r.SchemaPath,
		Line:       r.Line,
	})
	c.qmu.Unlock()
}

// drain empties the queue and forwards every item to the logger.
func (c *Context) drain() []ErrorItem {
	c.qmu.Lock()
	items := c.queue
	c.queue = nil
	c.qmu.Unlock()
	for _, it := range items {
		c.emit(it)
	}
	return items
}

func (c *Context) emit(it ErrorItem) {
	var ev *zerolog.Event
	switch it.Level {
	case LevelError:
		ev = c.logger.Error()
	case LevelWarning:
		ev = c.logger.Warn()
	case LevelVerbose:
		ev = c.logger.Info()
	default:
		ev = c.logger.Debug()
	}
	ev = ev.Stringer("code", it.Code)
	if it.VECode != VESuccess {
		ev = ev.Stringer("vecode", it.VECode)
	}
	if it.DataPath != "" {
		ev = ev.Str("data_path", it.DataPath)
	}
	if it.SchemaPath != "" {
		ev = ev.Str("schema_path", it.SchemaPath)
	}
	if it.Line > 0 {
		ev = ev.Uint64("line", it.Line)
	}
	ev.Msg(it.Message)
	c.metrics.observeRecord(it.Level)
}

// call runs one native call and turns its status and records into an
// error. def is the kind used when nothing more specific applies.
func (c *Context) call(op string, def ErrorKind, fn func() ly.Status) error {
	return c.check(op, def, c.run(op, fn))
}

// run times a native call and counts its status.
func (c *Context) run(op string, fn func() ly.Status) ly.Status {
	start := time.Now()
	st := fn()
	c.metrics.observeCall(op, st, time.Since(start))
	return st
}

// check drains the queue after a native call. On success the records are
// kept as warnings when the context is configured to keep them.
func (c *Context) check(op string, def ErrorKind, st ly.Status) error {
	items := c.drain()
	if st == ly.Success {
		if c.keepWarnings && len(items) > 0 {
			c.qmu.Lock()
			c.warnings = append(c.warnings, items...)
			c.qmu.Unlock()
		}
		return nil
	}
	return &Error{Kind: classify(def, st, items), Op: op, Code: Code(st), Items: items}
}

// Warnings returns the records kept from successful calls and clears them.
// Records are only kept when Options.KeepWarnings is set.
func (c *Context) Warnings() []ErrorItem {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	w := c.warnings
	c.warnings = nil
	return w
}

// SetLogLevel changes the most verbose level the native library reports
// and returns the previous one.
func (c *Context) SetLogLevel(level Level) (Level, error) {
	if err := c.alive("set log level"); err != nil {
		return 0, err
	}
	return levelOf(c.native.SetLogLevel(level.native())), nil
}
