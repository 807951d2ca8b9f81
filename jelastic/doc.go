// Package jelastic is a change-tracking object model of a Jelastic platform
// account. Environments, node groups, nodes, mount points and container
// volumes are read from the control plane, mutated in memory and pushed back
// with Save, which issues only the calls needed to reconcile what changed.
//
// A tree returned by a Client must not be shared between goroutines.
package jelastic
