package logging

import "log/slog"

// Common field names for consistent logging across the gateway.
const (
	FieldService   = "service"
	FieldProjectID = "project_id"
	FieldEventID   = "event_id"
	FieldPublicKey = "public_key"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldIndex     = "index"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ProjectID returns a slog attribute for the Sentry project id.
func ProjectID(id int) slog.Attr {
	return slog.Int(FieldProjectID, id)
}

// EventID returns a slog attribute for an event id.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// PublicKey returns a slog attribute for a DSN public key.
func PublicKey(key string) slog.Attr {
	return slog.String(FieldPublicKey, key)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Index returns a slog attribute for an OpenSearch index name.
func Index(name string) slog.Attr {
	return slog.String(FieldIndex, name)
}
