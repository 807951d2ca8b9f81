package common

import "strings"

// ResolveNameInput picks a name from the flag or the first positional
// argument; both may be given when they agree.
func ResolveNameInput(label string, flagValue string, args []string, required bool) (string, error) {
	var argValue string
	if len(args) > 0 {
		argValue = strings.TrimSpace(args[0])
	}
	flagValue = strings.TrimSpace(flagValue)

	if flagValue != "" && argValue != "" && flagValue != argValue {
		return "", ValidationError(label+" mismatch between positional argument and flag", nil)
	}

	name := argValue
	if flagValue != "" {
		name = flagValue
	}

	if required && name == "" {
		return "", ValidationError(label+" is required", nil)
	}

	return name, nil
}
