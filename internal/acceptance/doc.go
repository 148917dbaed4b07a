// Package acceptance runs the behaviour suite in features/ against the core
// services wired to in-memory and miniredis backends.
package acceptance
