package types

// redacted is the replacement emitted wherever a secret would otherwise be
// printed or serialized.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive value (database URL, service token) that
// must never appear in logs or serialized output. fmt and encoding/json both
// see only the redacted placeholder; call Unmask where the plaintext is
// genuinely required.
type SecretString string

// String satisfies fmt.Stringer with the redacted placeholder.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON emits the redacted placeholder so config dumps and structured
// log entries never carry the plaintext.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext. Limit usage to connection strings and
// Authorization headers.
func (s SecretString) Unmask() string {
	return string(s)
}
