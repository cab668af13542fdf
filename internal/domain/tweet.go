package domain

import "time"

// NeutralSentiment is recorded for tweets whose score could not be obtained.
const NeutralSentiment = 0.5

// Tweet is a raw item returned by a search backend.
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// WatchQuery describes what a single watch monitors.
type WatchQuery struct {
	Account string `json:"account"`
	Query   string `json:"query"`
}

// EnrichedTweet pairs a tweet with its derived sentiment score.
type EnrichedTweet struct {
	Tweet
	Sentiment float64   `json:"sentiment"`
	Scored    bool      `json:"scored"`
	FetchedAt time.Time `json:"fetched_at"`
}

// EnrichedBatch is the snapshot persisted for a watch after each tick.
type EnrichedBatch struct {
	BatchID   string          `json:"batch_id"`
	EntityID  string          `json:"entity_id"`
	Account   string          `json:"account"`
	Query     string          `json:"query"`
	FetchedAt time.Time       `json:"fetched_at"`
	Tweets    []EnrichedTweet `json:"tweets"`
}

// Degraded reports how many tweets fell back to the neutral score.
func (b EnrichedBatch) Degraded() int {
	n := 0
	for _, t := range b.Tweets {
		if !t.Scored {
			n++
		}
	}
	return n
}
