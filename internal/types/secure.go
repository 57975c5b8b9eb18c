package types

// redacted is the placeholder substituted for secret values in logs and
// serialized output.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string that refuses to print itself. It overrides
// String() and MarshalJSON() so API keys and connection strings never leak
// through fmt verbs, structured logs, or JSON config dumps. Call Unmask()
// at the one place the raw value is genuinely needed.
type SecretString string

// String returns the redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value. Limit calls to the sites that
// hand the secret to a client or driver.
func (s SecretString) Unmask() string {
	return string(s)
}
