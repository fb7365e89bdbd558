package router

import (
	"testing"

	clientdomain "github.com/agencyops/renewd/internal/client/domain"
)

func TestRouteFollowsPreferenceOrder(t *testing.T) {
	prefs := clientdomain.ResolvedPreferences{
		ClientID: "7",
		Steps: []clientdomain.PreferenceStep{
			{Channel: clientdomain.ChannelWhatsApp, Recipient: "+628111", DelayHours: 12},
			{Channel: clientdomain.ChannelEmail, Recipient: "ops@example.com", DelayHours: 24},
		},
	}

	steps := Route(prefs, false, "")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Channel != clientdomain.ChannelWhatsApp {
		t.Fatalf("expected whatsapp first, got %q", steps[0].Channel)
	}
	if steps[1].Channel != clientdomain.ChannelEmail {
		t.Fatalf("expected email second, got %q", steps[1].Channel)
	}
}

func TestRouteOptOutReturnsEmpty(t *testing.T) {
	prefs := clientdomain.ResolvedPreferences{
		ClientID: "7",
		OptOut:   true,
		Steps: []clientdomain.PreferenceStep{
			{Channel: clientdomain.ChannelEmail, Recipient: "ops@example.com"},
		},
	}

	if steps := Route(prefs, false, ""); len(steps) != 0 {
		t.Fatalf("expected empty route for opted-out client, got %d steps", len(steps))
	}
}

func TestRouteEscalationPrependsOwnerInApp(t *testing.T) {
	prefs := clientdomain.ResolvedPreferences{
		ClientID: "7",
		Steps: []clientdomain.PreferenceStep{
			{Channel: clientdomain.ChannelEmail, Recipient: "ops@example.com", DelayHours: 24},
		},
	}

	steps := Route(prefs, true, "90001")
	if len(steps) != 2 {
		t.Fatalf("expected owner step plus client step, got %d", len(steps))
	}
	if steps[0].Channel != clientdomain.ChannelInApp || !steps[0].Internal {
		t.Fatalf("expected internal in-app owner step first, got %+v", steps[0])
	}
	if steps[0].Recipient != "90001" {
		t.Fatalf("expected owner recipient, got %q", steps[0].Recipient)
	}
}

func TestRouteEscalationIgnoresOptOutForOwner(t *testing.T) {
	prefs := clientdomain.ResolvedPreferences{ClientID: "7", OptOut: true}

	steps := Route(prefs, true, "90001")
	if len(steps) != 1 {
		t.Fatalf("expected only the internal owner step, got %d", len(steps))
	}
	if !steps[0].Internal {
		t.Fatalf("expected internal step, got %+v", steps[0])
	}
}

func TestRouteSkipsEmptyRecipients(t *testing.T) {
	prefs := clientdomain.ResolvedPreferences{
		ClientID: "7",
		Steps: []clientdomain.PreferenceStep{
			{Channel: clientdomain.ChannelSMS, Recipient: ""},
			{Channel: clientdomain.ChannelEmail, Recipient: "ops@example.com"},
		},
	}

	steps := Route(prefs, false, "")
	if len(steps) != 1 || steps[0].Channel != clientdomain.ChannelEmail {
		t.Fatalf("expected the email step only, got %+v", steps)
	}
}
