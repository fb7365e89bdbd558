// Package router resolves the ordered channel and recipient list for a
// notification. Fallback advancement happens at dispatch time; the router
// only produces the full candidate chain.
package router

import (
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
)

// Step is one candidate in the dispatch chain. DelayHours is the
// acknowledgment window before the dispatcher advances past this step.
type Step struct {
	Channel    clientdomain.Channel
	Recipient  string
	DelayHours int
	// Internal marks organization-facing recipients (escalations).
	Internal bool
}

// Route builds the ordered candidate list from the client's resolved
// preferences. Escalation notifications prepend the organizational owner
// on the in-app channel regardless of client preference; an opted-out
// client yields no client-facing steps so the dispatcher records a
// suppressed outcome instead of silently doing nothing.
func Route(prefs clientdomain.ResolvedPreferences, escalation bool, ownerRecipient string) []Step {
	var steps []Step

	if escalation && ownerRecipient != "" {
		steps = append(steps, Step{
			Channel:   clientdomain.ChannelInApp,
			Recipient: ownerRecipient,
			Internal:  true,
		})
	}

	if prefs.OptOut {
		return steps
	}

	for _, pref := range prefs.Steps {
		if pref.Recipient == "" {
			continue
		}
		steps = append(steps, Step{
			Channel:    pref.Channel,
			Recipient:  pref.Recipient,
			DelayHours: pref.DelayHours,
		})
	}

	return steps
}
