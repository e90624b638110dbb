package logger

import (
	"log"
	"time"
)

// Debug logs a debug message with consistent format
// Format: [DEBUG] timestamp=... actor=... action=... details=...
func Debug(actor, action, details string) {
	write("DEBUG", actor, action, details)
}

// Info logs state changes that operators care about
func Info(actor, action, details string) {
	write("INFO", actor, action, details)
}

// Error logs failures that were not returned to a caller
func Error(actor, action, details string) {
	write("ERROR", actor, action, details)
}

func write(level, actor, action, details string) {
	if actor == "" {
		actor = "system"
	}
	timestamp := time.Now().Format(time.RFC3339)
	log.Printf("[%s] timestamp=%s actor=%s action=%s details=%s", level, timestamp, actor, action, details)
}
