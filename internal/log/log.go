// Package log writes leveled JSON lines with secret masking.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// EnvLevel names the environment variable that overrides the default level.
const EnvLevel = "QAHUB_LOG_LEVEL"

var levelNames = map[Level]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}
var nameToLevel = map[string]Level{"debug": Debug, "info": Info, "warn": Warn, "warning": Warn, "error": Error}

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, bool) {
	l, ok := nameToLevel[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

func (l Level) String() string { return levelNames[l] }

type Logger struct {
	out    io.Writer
	level  Level
	fields map[string]any
	mu     *sync.Mutex
}

// New returns a logger writing to out (stderr when nil). The level comes
// from QAHUB_LOG_LEVEL when set, otherwise from level, otherwise info.
func New(out io.Writer, level string) *Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl := Info
	if l, ok := ParseLevel(level); ok {
		lvl = l
	}
	if l, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		lvl = l
	}
	return &Logger{out: out, level: lvl, fields: map[string]any{}, mu: &sync.Mutex{}}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{out: io.Discard, level: Error + 1, fields: map[string]any{}, mu: &sync.Mutex{}}
}

// SetLevel changes the minimum level of l. Children created afterwards inherit it.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) Level() Level { return l.level }

// With returns a child logger carrying extra key/value fields.
func (l *Logger) With(kv ...any) *Logger {
	child := &Logger{out: l.out, level: l.level, fields: make(map[string]any, len(l.fields)), mu: l.mu}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range toMap(kv...) {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) write(level Level, msg string, kv map[string]any) {
	if l == nil || level < l.level {
		return
	}
	rec := make(map[string]any, 3+len(l.fields)+len(kv))
	for k, v := range l.fields {
		rec[k] = v
	}
	for k, v := range kv {
		rec[k] = v
	}
	rec["ts"] = time.Now().Format(time.RFC3339)
	rec["level"] = levelNames[level]
	rec["msg"] = msg
	maskSecrets(rec)
	b, err := json.Marshal(rec)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"level":%q,"msg":%q,"log_error":%q}`, levelNames[level], msg, err.Error()))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(b, '\n'))
}

func (l *Logger) Debug(msg string, kv ...any) { l.write(Debug, msg, toMap(kv...)) }
func (l *Logger) Info(msg string, kv ...any)  { l.write(Info, msg, toMap(kv...)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.write(Warn, msg, toMap(kv...)) }
func (l *Logger) Error(msg string, kv ...any) { l.write(Error, msg, toMap(kv...)) }

func toMap(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			m[k] = v.Error()
		case fmt.Stringer:
			m[k] = v.String()
		default:
			m[k] = v
		}
	}
	return m
}

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

// maskSecrets redacts likely secret values in-place.
func maskSecrets(m map[string]any) {
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lowerK := strings.ToLower(k)
		masked := false
		for _, p := range secretKeys {
			if strings.Contains(lowerK, p) {
				m[k] = redact(s)
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if strings.HasPrefix(strings.ToLower(s), "bearer ") {
			m[k] = "Bearer " + redact(s[len("bearer "):])
			continue
		}
		if strings.HasPrefix(s, "sk-") {
			m[k] = redact(s)
		}
	}
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", s[:4], s[n-4:])
}
