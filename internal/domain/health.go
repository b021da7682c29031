package domain

// HealthStatus is the outcome of one doctor check, ordered ok < warn < error.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthError:
		return 2
	case HealthWarn:
		return 1
	default:
		return 0
	}
}

// HealthCheck captures a single diagnostic result.
type HealthCheck struct {
	Name    string
	Status  HealthStatus
	Details string
}

// HealthReport is the ordered list of checks printed by `kernhell doctor`.
type HealthReport struct {
	Checks []HealthCheck
}

// Worst returns the most severe status in the report. An empty report is ok.
func (r HealthReport) Worst() HealthStatus {
	worst := HealthOK
	for _, c := range r.Checks {
		if c.Status.rank() > worst.rank() {
			worst = c.Status
		}
	}
	return worst
}

// Failures lists the names of checks that ended in HealthError.
func (r HealthReport) Failures() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Status == HealthError {
			names = append(names, c.Name)
		}
	}
	return names
}
