/*
Package extraction wraps the external oracle used to resolve free text.

It exposes the two calls the field catalog needs (date resolution and list
extraction) and folds every kind of failure (transport errors, timeouts,
open circuit, malformed output) into the single domain.Sentinel value, so the
state machine has one failure vocabulary regardless of cause.
*/
package extraction
