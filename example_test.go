package intake_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/pkg/domain"
)

// ExampleNew_memory runs the first turns of an intake fully in memory.
// Without an oracle only ISO dates are understood.
func ExampleNew_memory() {
	eng, err := intake.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	resp, err := eng.Start(ctx, "organizer-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.Phase, resp.Token)

	resp, err = eng.Advance(ctx, domain.Request{
		SessionID: resp.SessionID,
		OwnerID:   "organizer-1",
		Token:     resp.Token,
		Message:   "DevHack 2025",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.Phase, resp.Token, resp.Clarification)
	// Output:
	// collecting_parent p.0
	// collecting_parent p.1 false
}
