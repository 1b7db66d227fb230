// Package prompts manages instruction overrides for model calls. Each
// stage has built-in instructions and an immutable output spec; at most
// one stored override per stage is active and replaces the instructions.
package prompts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxNameLen         = 100
	maxInstructionsLen = 32 << 10
)

// Prompt is a stored instruction override for one stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Command is the writable part of a Prompt, used by both create and update.
type Command struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// Validate trims surrounding whitespace and checks field bounds.
func (c *Command) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Instructions = strings.TrimSpace(c.Instructions)
	if c.Description != nil {
		d := strings.TrimSpace(*c.Description)
		if d == "" {
			c.Description = nil
		} else {
			c.Description = &d
		}
	}

	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}

	switch n := utf8.RuneCountInString(c.Name); {
	case n == 0:
		return fmt.Errorf("%w: name is required", ErrInvalidPrompt)
	case n > maxNameLen:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidPrompt, maxNameLen)
	}

	switch n := len(c.Instructions); {
	case n == 0:
		return fmt.Errorf("%w: instructions are required", ErrInvalidPrompt)
	case n > maxInstructionsLen:
		return fmt.Errorf("%w: instructions exceed %d bytes", ErrInvalidPrompt, maxInstructionsLen)
	}

	return nil
}
