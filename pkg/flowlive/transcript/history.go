package transcript

// HistoryPage is one page of older messages, oldest first.
type HistoryPage struct {
	ChatID   string    `json:"chat_id"`
	Messages []Message `json:"messages"`
	// HasMore reports whether older pages exist.
	HasMore bool `json:"has_more"`
}

// MergeHistory prepends the page to transcript. Entries whose id is already
// present are skipped and the rest are marked HistoryOnly. A page for any
// chat other than activeChatID is stale: transcript is returned unchanged
// and ok is false.
func MergeHistory(transcript []Message, page HistoryPage, activeChatID string) (merged []Message, ok bool) {
	if page.ChatID != activeChatID {
		return transcript, false
	}

	present := make(map[string]bool, len(transcript)+len(page.Messages))
	for _, m := range transcript {
		if !m.ID.IsZero() {
			present[m.ID.String()] = true
		}
	}

	older := make([]Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		if !m.ID.IsZero() {
			if present[m.ID.String()] {
				continue
			}
			present[m.ID.String()] = true
		}
		m = m.clone()
		m.HistoryOnly = true
		older = append(older, m)
	}

	merged = make([]Message, 0, len(older)+len(transcript))
	merged = append(merged, older...)
	merged = append(merged, Clone(transcript)...)
	return merged, true
}
