package slogx

import "log/slog"

// Error returns a slog.Attr for the provided error under the "error" key.
//
// Parameters:
//   - err: The error to be converted into a slog.Attr.
//
// Returns:
//   - slog.Attr: An attribute with the key "error" and the error's message as the value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Subject returns a slog.Attr for a message-bus subject under the "subject"
// key, so log lines about bus traffic stay greppable by a single key.
//
// Parameters:
//   - subject: The subject the log line refers to.
//
// Returns:
//   - slog.Attr: An attribute with the key "subject" and the subject as the value.
func Subject(subject string) slog.Attr {
	return slog.String("subject", subject)
}

// Agent returns a slog.Attr for an agent identifier under the "agent" key.
//
// Parameters:
//   - id: The agent identifier.
//
// Returns:
//   - slog.Attr: An attribute with the key "agent" and the identifier as the value.
func Agent(id string) slog.Attr {
	return slog.String("agent", id)
}

// ByteString creates a slog.Attr with the given key and the string
// representation of a byte slice, for logging raw payload snippets.
//
// Parameters:
//   - key: The key for the attribute.
//   - value: The byte slice to be converted to a string.
//
// Returns:
//   - slog.Attr: An attribute containing the key and the stringified bytes.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}
