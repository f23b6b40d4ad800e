package obs

import (
	"context"
)

// HealthStatus is the result of HealthChecker.Check: an overall status
// and the named checks behind it. Check does not inspect the db handed to
// NewHealthChecker; it always reports "healthy" with a single "basic"
// check.
type HealthStatus struct {
	Status string
	Checks map[string]*CheckResult
}

// CheckResult is the outcome of a single named health check.
type CheckResult struct {
	Healthy bool
	Message string
}

// HealthChecker performs health checks
type HealthChecker struct {
	db interface{}
}

// NewHealthChecker creates health checker
func NewHealthChecker(db interface{}) *HealthChecker {
	return &HealthChecker{db: db}
}

// Check performs health check
func (hc *HealthChecker) Check(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{
		Status: "healthy",
		Checks: map[string]*CheckResult{
			"basic": {
				Healthy: true,
				Message: "System operational",
			},
		},
	}, nil
}
