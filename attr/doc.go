// Package attr implements the field metadata table, the snapshot baseline and
// the divergence check shared by every remote resource proxy.
//
// A Record holds the live value of each declared field next to a baseline of
// the values last known to match the remote service. Callers mutate values
// through Set, which enforces read-only and type constraints; only the
// snapshot engine (TakeSnapshot, EnsureFetched, Assume) touches the baseline.
package attr
