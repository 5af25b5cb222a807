package resolver

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/anvil-platform/federation/internal/semver"
)

// Validate checks the version fields of a share config.
func (c ShareConfig) Validate() error {
	var errs []error
	if c.RequiredVersion != "" {
		if _, err := semver.ParseConstraint(c.RequiredVersion); err != nil {
			errs = append(errs, fmt.Errorf("invalid requiredVersion: %w", err))
		}
	}
	if c.Version != "" {
		if _, err := semver.ParseVersion(c.Version); err != nil {
			errs = append(errs, fmt.Errorf("invalid version: %w", err))
		}
	}
	if c.StrictVersion && c.RequiredVersion == "" {
		errs = append(errs, fmt.Errorf("strictVersion requires requiredVersion"))
	}
	return utilerrors.NewAggregate(errs)
}
