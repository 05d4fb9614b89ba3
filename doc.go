/*
Package intake is a guided conversational intake engine for hackathon events.

It walks an organizer through a fixed catalog of questions: first the event
itself (the parent record), then each of its challenges (the child records).
Every answer is validated before it is accepted. Dates and free-form lists go
through a natural-language oracle, and a rejected answer comes back as a
clarification prompt rather than an error.

# Concept

The engine is a deterministic state machine over a Position (phase, field
index, child index). The host owns the transport and the engine owns the
rules:

  - A turn is applied only at the stored Position. Clients echo the position
    token (or the last question) and stale answers are refused.
  - Parent fields are committed to durable storage once the last required
    field is accepted. Each challenge is committed when its last field is
    accepted, keyed by its order index so replays are idempotent.
  - The sum of committed prizes never exceeds the event budget, even across
    instances.
  - When the declared number of challenges is committed, a completion event
    is published to the configured Notifier.

# Usage

	eng, err := intake.New(
		intake.WithOracle(oracle),
		intake.WithGateway(gateway),
	)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := eng.Start(ctx, ownerID)
	for err == nil && !resp.Complete {
		fmt.Println(resp.Prompt)
		answer := readLine()
		resp, err = eng.Advance(ctx, domain.Request{
			SessionID: resp.SessionID,
			OwnerID:   ownerID,
			Token:     resp.Token,
			Message:   answer,
		})
	}

Errors returned by Advance that satisfy domain.IsRetryable mean a durable
write failed. The session did not move, so the same turn can be sent again.
*/
package intake
