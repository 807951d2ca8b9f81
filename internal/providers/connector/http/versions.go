package http

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Functions unavailable on older platforms. Calls are rejected locally when
// the context declares an older platform-version.
var minimumVersions = map[string]string{
	"Environment.Control.ApplyNodeGroupData": ">= 5.9.0",
}

func defaultMinimumVersions() map[string]*semver.Constraints {
	constraints := make(map[string]*semver.Constraints, len(minimumVersions))
	for function, raw := range minimumVersions {
		parsed, err := semver.NewConstraint(raw)
		if err != nil {
			panic(fmt.Sprintf("invalid minimum version %q for %s: %v", raw, function, err))
		}
		constraints[function] = parsed
	}
	return constraints
}

// checkPlatformVersion is a no-op when no platform version is configured.
func (g *Gateway) checkPlatformVersion(function string) error {
	if g.platform == nil {
		return nil
	}
	constraint, ok := g.minimums[function]
	if !ok {
		return nil
	}
	if constraint.Check(g.platform) {
		return nil
	}
	return validationError(
		fmt.Sprintf("%s requires platform version %s, context declares %s", function, constraint, g.platform),
		nil,
	)
}
