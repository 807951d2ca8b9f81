package commandmeta

import (
	"strings"
)

type OutputPolicy uint8

const (
	OutputPolicyStructured OutputPolicy = iota
	OutputPolicyTextOnly
	OutputPolicyYAMLDefaultTextOrYAML
)

const rootName = "jelctl"

// RequiresContextBootstrapPath reports whether a command talks to the
// control plane and so needs a resolved context before running.
func RequiresContextBootstrapPath(commandPath string) bool {
	normalized := strings.TrimSpace(commandPath)
	switch {
	case normalized == rootName+" config check":
		return true
	case normalized == rootName+" call":
		return true
	case strings.HasPrefix(normalized, rootName+" env "):
		return true
	case strings.HasPrefix(normalized, rootName+" node "):
		return true
	case strings.HasPrefix(normalized, rootName+" nodegroup "):
		return true
	case strings.HasPrefix(normalized, rootName+" group "):
		return true
	}

	return false
}

func EmitsExecutionStatusPath(path string) bool {
	switch strings.TrimSpace(path) {
	case rootName + " env apply",
		rootName + " env start",
		rootName + " env stop",
		rootName + " env sleep",
		rootName + " env clone",
		rootName + " node cloudlets",
		rootName + " nodegroup redeploy",
		rootName + " nodegroup env-vars set",
		rootName + " group create",
		rootName + " group delete":
		return true
	default:
		return false
	}
}

func OutputPolicyForPath(path string) OutputPolicy {
	switch strings.TrimSpace(path) {
	case rootName + " config show":
		return OutputPolicyYAMLDefaultTextOrYAML
	case rootName + " nodegroup read-file",
		rootName + " node read-file":
		return OutputPolicyTextOnly
	default:
		return OutputPolicyStructured
	}
}
