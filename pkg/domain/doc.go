/*
Package domain contains the core domain models of the intake engine.

It defines the entities that flow through a guided intake conversation: the
tagged field values, the per-session draft and cursor, and the durable event
and challenge records. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Value: A parsed answer, tagged with the Kind of the field that produced it.
  - Session: The in-flight conversation (Position, parent draft, child drafts).
  - Position: The explicit cursor of a session, encoded as an opaque token for clients.
  - Event / Challenge: The committed parent and child records.
*/
package domain
