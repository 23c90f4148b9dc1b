package server

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// ClientPrefix is the product token of the Go client in X-Client-Info.
const ClientPrefix = "tablequery-go/"

// ClientGate flags clients older than a minimum version.
type ClientGate struct {
	min *version.Version
}

// NewClientGate creates a gate for minimum. An empty minimum flags
// nothing.
func NewClientGate(minimum string) (*ClientGate, error) {
	if minimum == "" {
		return &ClientGate{}, nil
	}
	v, err := version.NewVersion(minimum)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum client version %q: %w", minimum, err)
	}
	return &ClientGate{min: v}, nil
}

// Deprecated reports whether the X-Client-Info value names a Go client
// older than the minimum. Other clients and unparsable versions are never
// flagged.
func (g *ClientGate) Deprecated(info string) (string, bool) {
	if g.min == nil {
		return "", false
	}
	for _, token := range strings.Fields(info) {
		raw, ok := strings.CutPrefix(token, ClientPrefix)
		if !ok {
			continue
		}
		v, err := version.NewVersion(raw)
		if err != nil {
			return raw, false
		}
		return raw, v.LessThan(g.min)
	}
	return "", false
}
