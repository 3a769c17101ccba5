package debugger

import (
	"sync"
)

// CommandHistory maintains a bounded history of executed commands
type CommandHistory struct {
	mu       sync.RWMutex
	commands []string
	maxSize  int
	position int // current position for up/down navigation
}

// NewCommandHistory creates a new command history
func NewCommandHistory() *CommandHistory {
	return &CommandHistory{
		commands: make([]string, 0, 100),
		maxSize:  1000,
	}
}

// Add appends a command, skipping empties and immediate duplicates
func (h *CommandHistory) Add(cmd string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cmd == "" {
		return
	}
	if len(h.commands) > 0 && h.commands[len(h.commands)-1] == cmd {
		h.position = len(h.commands)
		return
	}

	h.commands = append(h.commands, cmd)
	if len(h.commands) > h.maxSize {
		h.commands = h.commands[len(h.commands)-h.maxSize:]
	}
	h.position = len(h.commands)
}

// Previous steps back through history
func (h *CommandHistory) Previous() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.commands) == 0 || h.position == 0 {
		return ""
	}
	h.position--
	return h.commands[h.position]
}

// Next steps forward through history, returning "" past the end
func (h *CommandHistory) Next() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.commands) == 0 || h.position >= len(h.commands)-1 {
		h.position = len(h.commands)
		return ""
	}
	h.position++
	return h.commands[h.position]
}

// All returns a copy of the stored commands, oldest first
func (h *CommandHistory) All() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.commands))
	copy(out, h.commands)
	return out
}

// Len returns the number of stored commands
func (h *CommandHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.commands)
}
