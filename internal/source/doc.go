// Package source defines the pluggable interface for chat message sources and
// the registry that maps a kind name to its implementation. Implementations
// live in subpackages and register themselves from init.
package source
