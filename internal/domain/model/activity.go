package model

import (
	"fmt"
	"strings"
)

// Activity is the category of scored exercise an event belongs to.
type Activity string

// Supported activities.
const (
	ActivityMath         Activity = "math"
	ActivityMemory       Activity = "memory"
	ActivityWords        Activity = "words"
	ActivitySound        Activity = "sound"
	ActivitySentences    Activity = "sentences"
	ActivityArticulation Activity = "articulation"
	ActivityAttention    Activity = "attention"
)

// AllKey names artifacts and registry entries of a model trained across activities.
const AllKey = "all"

// activityCodes is the stable enum-to-integer table. Codes are persisted
// implicitly through group ordering, so existing entries must never be renumbered.
var activityCodes = map[Activity]int{ //nolint:gochecknoglobals // immutable lookup table
	ActivityMath:         1,
	ActivityMemory:       2,
	ActivityWords:        3,
	ActivitySound:        4,
	ActivitySentences:    5,
	ActivityArticulation: 6,
	ActivityAttention:    7,
}

// AllActivities returns every supported activity in code order.
func AllActivities() []Activity {
	return []Activity{
		ActivityMath,
		ActivityMemory,
		ActivityWords,
		ActivitySound,
		ActivitySentences,
		ActivityArticulation,
		ActivityAttention,
	}
}

// Code returns the stable integer code of the activity, or 0 when unknown.
func (a Activity) Code() int {
	return activityCodes[a]
}

// Valid reports whether a is a supported activity.
func (a Activity) Valid() bool {
	_, ok := activityCodes[a]
	return ok
}

func (a Activity) String() string { return string(a) }

// ParseActivity validates and normalizes an activity name.
func ParseActivity(s string) (Activity, error) {
	a := Activity(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		names := make([]string, 0, len(activityCodes))
		for _, v := range AllActivities() {
			names = append(names, string(v))
		}
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrUnknownActivity, s, strings.Join(names, ", "))
	}
	return a, nil
}

// KeyFor returns the artifact/registry key for an optional activity.
func KeyFor(a *Activity) string {
	if a == nil || *a == "" {
		return AllKey
	}
	return string(*a)
}
