// Package model defines the domain types shared across the berth launcher:
// the launch phase state machine, port occupancy snapshots, termination
// outcomes, server option toggles, and the CLIError/ExitCode types used to
// translate failures into process exit codes.
package model
