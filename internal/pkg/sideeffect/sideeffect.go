// Package sideeffect wraps best-effort side calls whose failure must not
// fail the primary operation.
package sideeffect

import (
	"github.com/gofiber/fiber/v2/log"
)

// Observe runs fn and logs a warning when it fails. Returns whether fn
// succeeded so callers can reflect the outcome in their result message.
func Observe(what string, fn func() error) bool {
	if err := fn(); err != nil {
		log.Warnf("[SideEffect] %s failed: %v", what, err)
		return false
	}
	return true
}
