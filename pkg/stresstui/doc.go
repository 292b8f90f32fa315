// Package stresstui provides a terminal user interface for stress runs.
//
// It uses the Bubble Tea framework to show a spinner for each running
// scenario, a pass or fail mark for each finished one, and an overall
// progress bar.
package stresstui
