package honeybadger

import "log/slog"

// redacted is what the API key renders as on every diagnostic path:
// fmt verbs, JSON marshaling, and slog attributes.
const redacted = "***REDACTED***"

// SecretString holds the project API key and masks it everywhere except
// Unmask. fmt verbs (including %#v via GoString), encoding/json, and
// log/slog records all carry the placeholder instead of the key, so a
// config dump or a debug log cannot leak it.
//
// Unmask returns the plaintext and is called only where the key goes on
// the wire: the X-API-Key header and the notice body.
type SecretString string

// String implements fmt.Stringer, covering the %s, %v, and %+v verbs.
func (s SecretString) String() string { return redacted }

// GoString implements fmt.GoStringer so %#v cannot reveal the underlying string.
func (s SecretString) GoString() string { return "SecretString(" + redacted + ")" }

// LogValue implements slog.LogValuer. A key passed as a log attribute is
// replaced before any handler sees it.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalJSON encodes the placeholder, never the key.
func (s SecretString) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// Unmask returns the plaintext key.
func (s SecretString) Unmask() string { return string(s) }
