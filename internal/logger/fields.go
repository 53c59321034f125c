package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Request
	// ========================================================================
	KeyRequestID  = "request_id"  // Per-request identifier (X-Request-Id)
	KeyTraceID    = "trace_id"    // OpenTelemetry trace id
	KeyMethod     = "method"      // HTTP method
	KeyPath       = "path"        // Request path
	KeyStatus     = "status"      // HTTP status code
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyBytes      = "bytes"       // Response size in bytes

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP = "client_ip" // Client IP address
	KeyActor    = "actor"     // Username of the authenticated caller
	KeyRole     = "role"      // Role of the authenticated caller

	// ========================================================================
	// Administration Objects
	// ========================================================================
	KeyUsername    = "username"     // Account username
	KeyDomain      = "domain"       // Mail domain name
	KeyAddress     = "address"      // Full mail address (mailbox, alias)
	KeyObjectType  = "object_type"  // Grant target type: account, domain, ...
	KeyObjectID    = "object_id"    // Grant target id
	KeyEvent       = "event"        // Lifecycle event name
	KeyExtension   = "extension"    // Extension name
	KeyScheme      = "scheme"       // Password scheme
	KeySetting     = "setting"      // Runtime setting key
	KeyCount       = "count"        // Number of affected items
	KeyOperation   = "operation"    // Sub-operation type
	KeyError       = "error"        // Error message
	KeyErrorDetail = "error_detail" // Additional error context
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RequestID returns a slog.Attr for the request identifier
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Actor returns a slog.Attr for the authenticated caller
func Actor(username string) slog.Attr {
	return slog.String(KeyActor, username)
}

// Username returns a slog.Attr for an account username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Domain returns a slog.Attr for a mail domain
func Domain(name string) slog.Attr {
	return slog.String(KeyDomain, name)
}

// Address returns a slog.Attr for a full mail address
func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}

// Object returns a group attr identifying a grant target
func Object(objectType, id string) slog.Attr {
	return slog.Group("object", slog.String("type", objectType), slog.String("id", id))
}

// Event returns a slog.Attr for a lifecycle event name
func Event(name string) slog.Attr {
	return slog.String(KeyEvent, name)
}

// Extension returns a slog.Attr for an extension name
func Extension(name string) slog.Attr {
	return slog.String(KeyExtension, name)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or an empty attr for nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
