/*
Package runner implements the conversation loop and I/O orchestration for the intake engine.

It acts as the bridge between the engine and a terminal or any other line
oriented stream. The runner sanitizes every answer, shows clarifications,
re-sends nothing on its own after a failed save, and tells the user how to
resume when the input ends.

# Key Components

  - Runner: The loop. It starts or resumes a session and feeds answers in.
  - IOHandler: Decouples how prompts are shown and answers read.
  - TextHandler: Interactive terminal usage, with an optional markdown renderer.
  - JSONHandler: JSON Lines for scripted or headless usage.
  - Sanitizer: Size, UTF-8 and control character policy shared with the HTTP and MCP adapters.

# Usage

	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if _, err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
