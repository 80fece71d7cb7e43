package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fakeyudi/tomato/internal/timer"
)

// listMarker prefixes every message line in the pool file.
const listMarker = "- "

// maxLineBytes bounds a single line of the pool file.
const maxLineBytes = 1 << 20

var fallbackMessages = map[timer.Mode]string{
	timer.ModeWork:  "Focus time is over! Step away and take a break.",
	timer.ModeBreak: "Break is over! Ready for another focus session?",
}

// FallbackMessage returns the fixed message for a finished phase.
func FallbackMessage(phase timer.Mode) string {
	if msg, ok := fallbackMessages[phase]; ok {
		return msg
	}
	return fallbackMessages[timer.ModeWork]
}

// ParseMessages extracts list items from a markdown document. Lines that do
// not start with "- " are ignored, as are items that are empty once trimmed.
func ParseMessages(r io.Reader) ([]string, error) {
	var messages []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, listMarker) {
			continue
		}
		msg := strings.TrimSpace(strings.TrimPrefix(line, listMarker))
		if msg == "" {
			continue
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return messages, nil
}

// MessagePool lazily loads messages from a file. A successful load, empty or
// not, is kept for the lifetime of the pool; a failed one is retried on the
// next call.
type MessagePool struct {
	mu       sync.Mutex
	path     string
	loaded   bool
	messages []string
}

// NewMessagePool returns a pool reading path. An empty path is a valid,
// permanently empty pool.
func NewMessagePool(path string) *MessagePool {
	return &MessagePool{path: path}
}

// StaticPool returns an already loaded pool holding messages.
func StaticPool(messages []string) *MessagePool {
	return &MessagePool{loaded: true, messages: append([]string(nil), messages...)}
}

// Messages returns the pool contents, loading them on first use.
func (p *MessagePool) Messages(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.messages, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.path == "" {
		p.loaded = true
		return nil, nil
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open message pool: %w", err)
	}
	defer f.Close()

	messages, err := ParseMessages(f)
	if err != nil {
		return nil, fmt.Errorf("load message pool %s: %w", p.path, err)
	}
	p.messages = messages
	p.loaded = true
	return p.messages, nil
}
