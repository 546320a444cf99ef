package moderation

import "time"

// Remaining describes how much of a sanction is left at a given instant.
// A sanction past its expiry is reported as inactive but is never cleared
// here; display layers distinguish "expired, awaiting closure" from
// "never sanctioned" by the record still being present.
type Remaining struct {
	Active    bool `json:"active"`
	Permanent bool `json:"permanent"`
	Hours     int  `json:"hours"`
	Minutes   int  `json:"minutes"`
}

// SanctionRemaining computes whether a sanction is currently in force and
// how much time is left. Pure function of its inputs; expiry is always
// recomputed from the stored timestamps, never cached or ticked.
//
// Returns nil when no sanction is set. For a permanent sanction the time
// fields are meaningless and left zero.
func SanctionRemaining(s *Sanction, now time.Time) *Remaining {
	if s == nil {
		return nil
	}

	if s.Permanent() {
		return &Remaining{Active: true, Permanent: true}
	}

	expiry := s.StartedAt.Add(time.Duration(*s.DurationHours) * time.Hour)
	if !now.Before(expiry) {
		return &Remaining{Active: false}
	}

	// Whole-minute floor of the time left, split into hours and minutes.
	totalMinutes := int(expiry.Sub(now) / time.Minute)
	return &Remaining{
		Active:  true,
		Hours:   totalMinutes / 60,
		Minutes: totalMinutes % 60,
	}
}
