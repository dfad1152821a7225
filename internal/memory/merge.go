package memory

// Merge combines persisted session history with inline caller-supplied
// context under the retention policy. Stored events always precede
// inline events, relative order within each source is preserved, and
// the result is chronological.
//
// The message-count bound applies first: only the last MaxMessages
// entries survive (zero keeps none). The character bound then walks the
// survivors newest to oldest, accumulating content length; the first
// entry that would push the total past MaxChars is dropped along with
// everything older.
func Merge(stored, inline []Event, policy *Policy) []Event {
	p := DefaultPolicy()
	if policy != nil {
		p = *policy
	}

	combined := make([]Event, 0, len(stored)+len(inline))
	for _, e := range stored {
		combined = append(combined, normalize(e))
	}
	for _, e := range inline {
		combined = append(combined, normalize(e))
	}

	// Last N by message count.
	n := p.MaxMessages
	if n < 0 {
		n = 0
	}
	if len(combined) > n {
		combined = combined[len(combined)-n:]
	}

	// Character budget, newest first.
	if p.MaxChars > 0 {
		total := 0
		kept := 0
		for i := len(combined) - 1; i >= 0; i-- {
			total += len(combined[i].Content)
			if total > p.MaxChars {
				break
			}
			kept++
		}
		combined = combined[len(combined)-kept:]
	}

	out := make([]Event, len(combined))
	copy(out, combined)
	return out
}

// normalize coerces an event to the {role, content} shape used in
// prompts. Caller-supplied memory is trusted but untyped; an empty role
// defaults to "user".
func normalize(e Event) Event {
	role := e.Role
	if role == "" {
		role = "user"
	}
	return Event{Role: role, Content: e.Content}
}
