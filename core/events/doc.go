// Package events defines the lifecycle events published on the event bus
// after each committed change.
//
// Available event types:
//   - UnitCreated, UnitStatusChanged, UnitContactBound: unit lifecycle
//   - CallCreated, CallStatusChanged, CallAssigned: call lifecycle
//   - CrewNotified: outcome of a crew alert
package events
