package usecase

import (
	"fmt"
	"html"
	"strings"

	"TweetWatch/internal/domain"
)

// buildDigestMessage renders a batch as Telegram HTML. User supplied text is
// escaped and no tag spans a line break, so the message can be split between
// tweets.
func buildDigestMessage(batch domain.EnrichedBatch) string {
	if len(batch.Tweets) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>@%s</b>", html.EscapeString(batch.Account))
	if batch.Query != "" {
		fmt.Fprintf(&b, " <code>%s</code>", html.EscapeString(batch.Query))
	}
	fmt.Fprintf(&b, " (%d tweets)\n\n", len(batch.Tweets))

	for _, tweet := range batch.Tweets {
		marker := ""
		if !tweet.Scored {
			marker = " (neutral fallback)"
		}
		fmt.Fprintf(&b, "- %s\nSentiment: %.2f%s\n\n", html.EscapeString(tweet.Text), tweet.Sentiment, marker)
	}

	return b.String()
}
