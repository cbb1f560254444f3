package types

// Event is a structured record of a state change. Attributes are flat string
// pairs so events can be serialized for any downstream transport without a
// schema.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
