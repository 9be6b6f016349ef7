// Package dispatch is the unit and call lifecycle engine.
//
// UnitManager owns unit creation and status changes, CallManager owns call
// creation and status changes together with their unit side effects, and
// Coordinator binds calls to units. Every mutation re-reads the entities it
// touches inside a single store transaction and publishes lifecycle events
// only after the transaction commits.
package dispatch
