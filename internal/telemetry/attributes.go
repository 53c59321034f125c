package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys.
const (
	AttrActor     = "postmaster.actor"
	AttrRole      = "postmaster.role"
	AttrEvent     = "postmaster.event"
	AttrHandlers  = "postmaster.event.handlers"
	AttrExtension = "postmaster.extension"
	AttrObject    = "postmaster.object"
)

// Actor returns the attributes identifying the authenticated caller.
func Actor(username, role string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrActor, username),
		attribute.String(AttrRole, role),
	}
}

// Event returns the attributes of a published lifecycle event.
func Event(name string, handlers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrEvent, name),
		attribute.Int(AttrHandlers, handlers),
	}
}
