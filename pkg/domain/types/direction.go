package types

import "fmt"

// CallDirection represents whether a call was placed to or by the system
type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// IsValid checks if the call direction is valid
func (d CallDirection) IsValid() bool {
	switch d {
	case CallDirectionInbound, CallDirectionOutbound:
		return true
	default:
		return false
	}
}

// String returns the string representation of the call direction
func (d CallDirection) String() string {
	return string(d)
}

// ParseCallDirection parses a string into a CallDirection
func ParseCallDirection(s string) (CallDirection, error) {
	d := CallDirection(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid call direction: %s", s)
	}
	return d, nil
}
