package domain

import "strings"

type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusPaused     SubscriptionStatus = "paused"
)

var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusIncomplete: {SubscriptionStatusTrialing, SubscriptionStatusActive},
	SubscriptionStatusTrialing:   {SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusPaused},
	SubscriptionStatusActive:     {SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusPaused},
	SubscriptionStatusPastDue:    {SubscriptionStatusActive, SubscriptionStatusCanceled},
	SubscriptionStatusPaused:     {SubscriptionStatusActive},
	SubscriptionStatusCanceled:   nil,
}

// CanTransition reports whether a subscription may move from one status to
// another. Staying in the same status is always allowed except out of canceled,
// which is terminal.
func CanTransition(from, to SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range subscriptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled
}

// StatusMap maps a provider's native status vocabulary onto canonical states.
// Lookups are case-insensitive and tolerate '-' or ' ' in place of '_'.
type StatusMap map[string]SubscriptionStatus

// Map returns the canonical status, defaulting to incomplete for anything the
// provider vocabulary does not name.
func (m StatusMap) Map(native string) SubscriptionStatus {
	key := normalizeStatusKey(native)
	if key == "" {
		return SubscriptionStatusIncomplete
	}
	if status, ok := m[key]; ok {
		return status
	}
	if status, ok := commonStatuses[key]; ok {
		return status
	}
	return SubscriptionStatusIncomplete
}

// commonStatuses covers spellings shared across providers.
var commonStatuses = StatusMap{
	"trialing": SubscriptionStatusTrialing,
	"on_trial": SubscriptionStatusTrialing,
	"trial":    SubscriptionStatusTrialing,
	"in_trial": SubscriptionStatusTrialing,
}

func normalizeStatusKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "_")
	value = strings.ReplaceAll(value, " ", "_")
	return value
}
