package types

// Identity is the verified caller identity handed to us by the front door.
// The front door has already validated the bearer token; Holvi trusts these
// claims completely and never re-verifies them.
type Identity struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Groups []string `json:"groups,omitempty"`
}

// InGroup reports whether the identity carries the given group claim.
func (i Identity) InGroup(group string) bool {
	for _, g := range i.Groups {
		if g == group {
			return true
		}
	}
	return false
}
