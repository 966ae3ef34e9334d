// Package testutil contains helpers used across tests to script backend
// behavior and build completions without a network. They are not intended
// for production usage.
package testutil
