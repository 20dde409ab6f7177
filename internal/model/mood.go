package model

import "time"

// DateLayout is the wire format for calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// MoodEntry mirrors the `mood_entries` table. A user has at most one entry
// per UTC calendar day.
type MoodEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Date       time.Time `json:"date"`
	MoodLevel  int       `json:"moodLevel"`
	EventLabel *string   `json:"eventLabel,omitempty"`
	PhotoData  *string   `json:"photoData,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MoodUpdate carries the mutable fields of a mood entry. Nil means unchanged.
type MoodUpdate struct {
	MoodLevel  *int
	EventLabel *string
}

// StartOfDayUTC truncates t to midnight of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
