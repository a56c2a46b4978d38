// Package notify содержит приёмники текстовых уведомлений конвейера.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sink принимает одну человекочитаемую строку на каждое значимое действие.
type Sink interface {
	Printf(format string, args ...any)
}

// Func адаптирует обычную функцию к Sink.
type Func func(msg string)

func (f Func) Printf(format string, args ...any) {
	f(fmt.Sprintf(format, args...))
}

// Discard отбрасывает все уведомления.
var Discard Sink = Func(func(string) {})

type slogSink struct {
	logger *slog.Logger
}

// NewSlog пересылает уведомления в slog на уровне Info.
func NewSlog(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogSink{logger: logger}
}

func (s *slogSink) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}

type writerSink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriter пишет уведомления построчно с отметкой времени.
func NewWriter(w io.Writer) Sink {
	return &writerSink{w: w, now: time.Now}
}

func (s *writerSink) Printf(format string, args ...any) {
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", s.now().Format("15:04:05"), line)
}

// Recorder накапливает уведомления в памяти.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// Lines возвращает копию накопленных строк.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Contains сообщает, есть ли строка с подстрокой substr.
func (r *Recorder) Contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
