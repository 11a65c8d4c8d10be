// Package trigger implements the per-event evaluation engine for inbound
// telemetry. It defines the Service (age resolution, concurrent persistence
// and hard evaluation, task enqueue), Engine (rule evaluation), per-user
// sliding windows, and the store interfaces the rules read from.
package trigger
