// Package palette binds plane roles to display colors.
//
// The default palette is a pure function of the role index: the base plane
// renders as grayscale and channels 1..7 cycle through a fixed set of
// distinguishable hues. There is no mutable palette table; the same role
// always resolves to the same default color, so compositions are
// reproducible across runs.
package palette

import (
	"fmt"
	"strings"

	"github.com/fluostack/fluostack/pkg/errors"
	"github.com/fluostack/fluostack/pkg/plane"
)

// Weights is an RGB weight triple with each component in [0,1].
// A plane's normalized intensity is multiplied by these weights before
// being summed into the composite.
type Weights struct {
	R, G, B float64
}

// Hex returns the #RRGGBB form of the weights.
func (w Weights) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X",
		uint8(w.R*255+0.5), uint8(w.G*255+0.5), uint8(w.B*255+0.5))
}

// ParseHex converts a #RRGGBB color to a weight triple.
func ParseHex(s string) (Weights, error) {
	s = strings.TrimSpace(s)
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil || len(s) != 7 {
		return Weights{}, errors.New(errors.ErrCodeInvalidInput, "invalid hex color %q, want #RRGGBB", s)
	}
	return Weights{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
	}, nil
}

// Assignment binds one role to a color and a visibility flag.
type Assignment struct {
	Role    plane.Role
	Weights Weights
	Enabled bool
}

// defaultWeights is the fixed hue cycle for channels 1..7. Index 0 is
// unused (the base role is handled separately as grayscale).
var defaultWeights = [plane.NumRoles]Weights{
	plane.RoleBase: {R: 1, G: 1, B: 1},            // grayscale base
	1:              {R: 1, G: 0, B: 0},            // red
	2:              {R: 0, G: 1, B: 0},            // green
	3:              {R: 0, G: 0, B: 1},            // blue
	4:              {R: 1, G: 1, B: 0},            // yellow
	5:              {R: 1, G: 0, B: 1},            // magenta
	6:              {R: 0, G: 1, B: 1},            // cyan
	7:              {R: 1, G: 165.0 / 255, B: 0},  // orange
}

// Default returns the deterministic default assignment for a role.
// The mapping is total over all roles and stable across runs: every role
// is enabled by default and carries its fixed hue.
func Default(role plane.Role) Assignment {
	if !role.Valid() {
		// Out-of-range roles never reach the compositor (the validator
		// rejects them), but keep the function total.
		return Assignment{Role: role, Weights: Weights{}, Enabled: false}
	}
	return Assignment{Role: role, Weights: defaultWeights[role], Enabled: true}
}

// Override customizes the assignment for one role. Nil fields keep the
// default for that aspect.
type Override struct {
	Weights *Weights
	Enabled *bool
}

// Resolve returns the effective assignment for a role: the default palette
// entry with any supplied override applied on top.
func Resolve(role plane.Role, ov *Override) Assignment {
	a := Default(role)
	if ov == nil {
		return a
	}
	if ov.Weights != nil {
		a.Weights = *ov.Weights
	}
	if ov.Enabled != nil {
		a.Enabled = *ov.Enabled
	}
	return a
}
