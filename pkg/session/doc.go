/*
Package session implements per-session mutual exclusion over a draft store.

The intake engine assumes a single logical writer per session: a second turn
for a session must not run until the first one has committed its phase
transition. Manager provides that guarantee inside one process through
reference-counted mutexes, and across replicas when a DistributedLocker
(e.g. Redis) is configured.
*/
package session
