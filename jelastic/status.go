package jelastic

import (
	"fmt"
	"strings"
)

// EnvStatus is the environment status code reported by the platform.
type EnvStatus int

const (
	StatusUnknown      EnvStatus = 0
	StatusRunning      EnvStatus = 1
	StatusStopped      EnvStatus = 2
	StatusLaunching    EnvStatus = 3
	StatusSleeping     EnvStatus = 4
	StatusSuspended    EnvStatus = 5
	StatusCreating     EnvStatus = 6
	StatusCloning      EnvStatus = 7
	StatusExporting    EnvStatus = 9
	StatusMigrating    EnvStatus = 10
	StatusBroken       EnvStatus = 11
	StatusUpdating     EnvStatus = 12
	StatusStopping     EnvStatus = 13
	StatusGoingToSleep EnvStatus = 14
	StatusRefreshing   EnvStatus = 1002
)

var statusNames = map[EnvStatus]string{
	StatusUnknown:      "unknown",
	StatusRunning:      "running",
	StatusStopped:      "stopped",
	StatusLaunching:    "launching",
	StatusSleeping:     "sleeping",
	StatusSuspended:    "suspended",
	StatusCreating:     "creating",
	StatusCloning:      "cloning",
	StatusExporting:    "exporting",
	StatusMigrating:    "migrating",
	StatusBroken:       "broken",
	StatusUpdating:     "updating",
	StatusStopping:     "stopping",
	StatusGoingToSleep: "going-to-sleep",
	StatusRefreshing:   "refreshing",
}

func (s EnvStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// statusFromCode maps unknown codes to StatusUnknown.
func statusFromCode(code int) EnvStatus {
	status := EnvStatus(code)
	if _, ok := statusNames[status]; ok {
		return status
	}
	return StatusUnknown
}

func ParseEnvStatus(value string) (EnvStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for status, name := range statusNames {
		if name == normalized {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown environment status %q", value)
}

// Visibility of an environment group in the dashboard.
type Visibility int

const (
	VisibilityShow Visibility = iota
	VisibilityHide
	VisibilityShowIfNotEmpty
)

var visibilityNames = map[Visibility]string{
	VisibilityShow:           "show",
	VisibilityHide:           "hide",
	VisibilityShowIfNotEmpty: "show-if-not-empty",
}

func (v Visibility) String() string {
	if name, ok := visibilityNames[v]; ok {
		return name
	}
	return fmt.Sprintf("visibility(%d)", int(v))
}

func ParseVisibility(value string) (Visibility, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for visibility, name := range visibilityNames {
		if name == normalized {
			return visibility, nil
		}
	}
	return VisibilityShow, fmt.Errorf("unknown visibility %q", value)
}
