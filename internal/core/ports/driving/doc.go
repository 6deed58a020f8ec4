// Package driving provides interfaces for the application's entry points
// (primary/inbound ports). The HTTP layer and the CLI depend on these,
// never on concrete services.
package driving
