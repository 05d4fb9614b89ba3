/*
Package catalog holds the ordered field definitions of a guided intake.

A Catalog is a table of pure parse-and-validate functions: the parent
(event) fields are asked once, the child (challenge) fields once per slot.
Each Field knows its prompt, its clarification prompt and how to turn free
text into a domain.Value. Oracle-backed kinds (dates, extracted lists) go
through the Extractor carried in Env.

Resolve maps the text of a previously emitted question back to a field. It
exists for clients that do not echo the position token; the engine prefers
the stored position whenever it has one.
*/
package catalog
