package oauth

// Redacted wraps a sensitive string (token, authorization code, consumer
// secret) to prevent accidental logging.
//
// The type implements fmt.Stringer, fmt.GoStringer, and the text/JSON
// marshaler interfaces to return "[REDACTED]" instead of the wrapped value,
// so secrets survive neither %v/%#v formatting nor config/state dumps.
//
//	code := oauth.NewRedacted("aPrx...")
//	fmt.Println(code)      // prints: [REDACTED]
//	form.Set("code", code.Value())
type Redacted struct {
	value string
}

// NewRedacted wraps the given value.
func NewRedacted(value string) Redacted {
	return Redacted{value: value}
}

// Value returns the wrapped value. Use it only at the point the secret is
// placed into a request; never log the result.
func (r Redacted) Value() string {
	return r.value
}

// IsEmpty returns true if the wrapped value is empty.
func (r Redacted) IsEmpty() bool {
	return r.value == ""
}

// String implements fmt.Stringer.
func (r Redacted) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (r Redacted) GoString() string {
	return "oauth.Redacted{[REDACTED]}"
}

// MarshalText implements encoding.TextMarshaler.
func (r Redacted) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (r Redacted) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so Redacted fields load
// from YAML and environment-derived config without exposing a setter.
func (r *Redacted) UnmarshalText(b []byte) error {
	r.value = string(b)
	return nil
}
