/*
Package ports defines the driven ports (interfaces) of the intake engine.

These interfaces decouple the state machine from external implementations,
allowing it to work with various session stores, durable backends, oracles
and notification channels.

# Key Interfaces

  - DraftStore: Holds in-progress sessions between turns (memory or Redis).
  - Gateway: Commits events, challenges and session checkpoints durably (memory, SQLite, DynamoDB).
  - DistributedLocker: Serializes turns of one session across instances.
  - Oracle: The external natural-language resolution capability.
  - Notifier: Receives the completion signal for downstream flows.
  - Intake: The driving port used by the HTTP, MCP and terminal adapters.
*/
package ports
