package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Everforest-inspired palette: calm greens for routine lines,
// warm colors reserved for warnings and errors.
const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;107m"
	colorName   = "\x1b[38;5;108m"
	colorSymbol = "\x1b[38;5;142m"
	colorKey    = "\x1b[38;5;245m"
	colorNumber = "\x1b[38;5;109m"
	colorWarn   = "\x1b[38;5;179m\x1b[48;5;58m"
	colorError  = "\x1b[38;5;167m\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// consoleEncoder implements a calm, compact console encoder.
// Format: "07:00:01  ꩜  pulse  Payload completed  exit_code=0 duration_ms=812"
//
// Context fields added via logger.With are kept in an embedded map encoder
// and printed after the per-entry fields, sorted by key.
type consoleEncoder struct {
	*zapcore.MapObjectEncoder
	color      bool
	timeLayout string
}

// newMinimalEncoder returns the colored encoder used on interactive terminals.
func newMinimalEncoder() *consoleEncoder {
	return &consoleEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		color:            true,
		timeLayout:       "15:04:05",
	}
}

// newPlainEncoder returns the uncolored encoder used for log files.
func newPlainEncoder() *consoleEncoder {
	return &consoleEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		color:            false,
		timeLayout:       "2006-01-02 15:04:05",
	}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return &consoleEncoder{
		MapObjectEncoder: clone,
		color:            enc.color,
		timeLayout:       enc.timeLayout,
	}
}

func (enc *consoleEncoder) paint(color, s string) string {
	if !enc.color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorTime, ent.Time.Format(enc.timeLayout)))

	// Level: only show for non-info levels
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	// Collect per-entry fields in call order
	entryFields := zapcore.NewMapObjectEncoder()
	var order []string
	for _, f := range fields {
		before := len(entryFields.Fields)
		f.AddTo(entryFields)
		if len(entryFields.Fields) > before {
			order = append(order, f.Key)
		}
	}

	// Symbol (from either the entry or the logger context) leads the line
	symbol, _ := entryFields.Fields[FieldSymbol].(string)
	if symbol == "" {
		symbol, _ = enc.Fields[FieldSymbol].(string)
	}
	if symbol != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorSymbol, symbol))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorName, ent.LoggerName))
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	var pairs []string
	for _, key := range order {
		if key == FieldSymbol {
			continue
		}
		pairs = append(pairs, enc.pair(key, entryFields.Fields[key]))
	}

	contextKeys := make([]string, 0, len(enc.Fields))
	for key := range enc.Fields {
		if key == FieldSymbol {
			continue
		}
		if _, dup := entryFields.Fields[key]; dup {
			continue
		}
		contextKeys = append(contextKeys, key)
	}
	sort.Strings(contextKeys)
	for _, key := range contextKeys {
		pairs = append(pairs, enc.pair(key, enc.Fields[key]))
	}

	if len(pairs) > 0 {
		final.AppendString("  ")
		final.AppendString(strings.Join(pairs, " "))
	}

	if ent.Stack != "" && ent.Level >= zapcore.ErrorLevel {
		final.AppendString("\n")
		final.AppendString(ent.Stack)
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *consoleEncoder) pair(key string, value interface{}) string {
	rendered := fmt.Sprintf("%v", value)
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		rendered = enc.paint(colorNumber, rendered)
	}
	return enc.paint(colorKey, key+"=") + rendered
}

// levelString returns bold + colored + background for WARN/ERROR
func (enc *consoleEncoder) levelString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return enc.paint(colorKey, "DEBUG")
	case zapcore.WarnLevel:
		return enc.paint(colorBold+colorWarn, "WARN")
	default:
		return enc.paint(colorBold+colorError, level.CapitalString())
	}
}
