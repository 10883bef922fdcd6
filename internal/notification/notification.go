// Package notification delivers task reminders through desktop notification
// systems, with a log-file channel for headless environments.
package notification

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"todosync/internal/utils"
)

// Notification is one reminder message.
type Notification struct {
	Title   string
	Message string
}

// Channel delivers notifications through one mechanism.
type Channel interface {
	Send(n Notification) error
	Close() error
}

// CommandExecutor runs external commands. Swappable for testing.
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

type realCommandExecutor struct{}

func (e *realCommandExecutor) Execute(cmd string, args ...string) error {
	return exec.Command(cmd, args...).Run()
}

// MockCommandExecutor records commands instead of running them.
type MockCommandExecutor struct {
	mu    sync.Mutex
	Calls [][]string
	Err   error
}

func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, append([]string{cmd}, args...))
	return m.Err
}

// desktopChannel sends notifications via the OS-native mechanism.
type desktopChannel struct {
	executor CommandExecutor
	platform string
}

// Option configures a channel.
type Option func(*desktopChannel)

// WithExecutor substitutes the command executor.
func WithExecutor(e CommandExecutor) Option {
	return func(c *desktopChannel) { c.executor = e }
}

// NewDesktopChannel creates a channel using the platform notification tool.
func NewDesktopChannel(opts ...Option) Channel {
	ch := &desktopChannel{platform: runtime.GOOS}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.executor == nil {
		ch.executor = &realCommandExecutor{}
	}
	return ch
}

func (c *desktopChannel) Send(n Notification) error {
	switch c.platform {
	case "linux":
		return c.executor.Execute("notify-send", n.Title, n.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message), escapeAppleScript(n.Title))
		return c.executor.Execute("osascript", "-e", script)
	default:
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
}

func (c *desktopChannel) Close() error { return nil }

// escapeAppleScript escapes backslashes and double quotes so user-controlled
// task titles cannot break out of the script string.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// logChannel appends notifications to a file.
type logChannel struct {
	mu   sync.Mutex
	path string
}

// NewLogChannel creates a channel writing one line per notification.
func NewLogChannel(path string) Channel {
	return &logChannel{path: path}
}

func (c *logChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	line := fmt.Sprintf("%s %s: %s\n", time.Now().Format(time.RFC3339), n.Title, n.Message)
	_, err = f.WriteString(line)
	return err
}

func (c *logChannel) Close() error { return nil }

// Manager fans one notification out to every channel. Delivery failures on
// one channel do not stop the others.
type Manager struct {
	channels []Channel
	logger   *utils.Logger
}

// NewManager creates a manager over the given channels.
func NewManager(channels ...Channel) *Manager {
	return &Manager{channels: channels, logger: utils.GetLogger()}
}

// Send delivers n to every channel, returning the first error seen.
func (m *Manager) Send(n Notification) error {
	var first error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			m.logger.Warn("notification: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes all channels.
func (m *Manager) Close() error {
	var first error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
