// Package scheduler implements the carbon-aware gate for training sessions.
// It polls the carbon intensity provider, enforces the allowed time window
// and intensity thresholds, waits with bounded backoff when the grid is
// dirty, and runs accepted sessions under energy monitoring and carbon
// budget enforcement.
//
// Threshold comparisons are inclusive: intensity equal to the configured
// ceiling still proceeds, intensity equal to the optimal threshold counts as
// optimal.
package scheduler
