/*
Package template renders ${field} placeholders in action parameters.

Rule actions carry message text such as

	Shipment ${trackingNumber} has been in transit ${daysInTransit} days

which the action executor renders against the triggering event's fields
(see event.Fields) before a handler runs.

Placeholder names may be dotted paths ("${customer.city}") that walk nested
maps. Whole numbers render without a decimal part, other floats with one
decimal, nil as an empty string.

Missing fields are kept as-is by default, so a typo in a rule file shows up
in the rendered alert instead of silently vanishing. Use WithMissing to blank
them or to fail the render.
*/
package template
