package extraction

import (
	"fmt"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

const datePrompt = `Resolve the date a hackathon organizer means in their message.

REFERENCE DATE: %s (%s)
USER MESSAGE: %s

INSTRUCTIONS:
1. Identify the single calendar date the message refers to (registration opening, hacking start or submission deadline).
2. Resolve relative expressions ("tomorrow", "next Friday", "first Monday of next month") against the reference date.
3. When the message omits the month or the year, use the month or year of the reference date.
4. Day/month/year numeric input (20/11/2025) is accepted. Month/day/year input (11/20/2025) is ambiguous: answer %[4]s.
5. Use 00:00:00Z unless the message gives a time.
6. If the message is not a date, or is ambiguous, answer %[4]s.

EXAMPLES (reference date 2025-08-25, a Monday):
- "20th Aug 2025" -> 2025-08-20T00:00:00Z
- "20/11/2025" -> 2025-11-20T00:00:00Z
- "next Friday" -> 2025-08-29T00:00:00Z
- "next month 1st Friday" -> 2025-09-05T00:00:00Z
- "tomorrow" -> 2025-08-26T00:00:00Z
- "sometime soon" -> %[4]s

Answer with the ISO 8601 timestamp (YYYY-MM-DDTHH:MM:SSZ) or %[4]s and nothing else.`

const sponsorsPrompt = `Extract the sponsor names from a hackathon organizer's message.

USER MESSAGE: %s

INSTRUCTIONS:
1. List the companies, institutions or groups named as sponsors.
2. If the message says there are none, or names nobody, answer [].
3. If the message cannot be interpreted at all, answer ["%s"].

EXAMPLES:
- "Sponsored by Google and Microsoft" -> ["Google", "Microsoft"]
- "Hosted by ACME Corp" -> ["ACME Corp"]
- "No sponsors" -> []
- "Google, Microsoft, and no other sponsors" -> ["Google", "Microsoft"]

Answer with a JSON array of strings and nothing else.`

const resourcesPrompt = `Extract the resources a hackathon challenge points participants to.

USER MESSAGE: %s

INSTRUCTIONS:
1. List datasets, tools, API names and URLs, one item each.
2. If the message says there are none, answer [].
3. If the message cannot be interpreted at all, answer ["%s"].

EXAMPLES:
- "Use the Google Maps API and OpenWeather API" -> ["Google Maps API", "OpenWeather API"]
- "Dataset at https://data.gov and GitHub" -> ["https://data.gov", "GitHub"]
- "Use Twilio API and https://api.twilio.com/docs" -> ["Twilio API", "https://api.twilio.com/docs"]
- "No resources" -> []

Answer with a JSON array of strings and nothing else.`

func buildDatePrompt(text string, now time.Time) string {
	return fmt.Sprintf(datePrompt, now.Format("2006-01-02 15:04:05Z07:00"), now.Weekday(), text, domain.Sentinel)
}

func buildListPrompt(subject, text string) string {
	if subject == domain.FieldResources {
		return fmt.Sprintf(resourcesPrompt, text, domain.Sentinel)
	}
	return fmt.Sprintf(sponsorsPrompt, text, domain.Sentinel)
}
