package model

import "time"

// ZodiacUnknown is stored when no birth date is known.
const ZodiacUnknown = "unknown"

// DefaultBirthDate is used for profiles created without a birth date.
var DefaultBirthDate = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// Profile mirrors the `profiles` table. A profile shares its primary key
// with the owning user.
type Profile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	BirthDate       time.Time `json:"birthDate"`
	ZodiacSign      string    `json:"zodiacSign"`
	ProfilePhotoURL *string   `json:"profilePhotoUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewProfile returns the default profile created alongside a new account.
// A zero birthDate yields DefaultBirthDate with an unknown sign.
func NewProfile(userID, name string, birthDate time.Time) Profile {
	p := Profile{ID: userID, Name: name, BirthDate: DefaultBirthDate, ZodiacSign: ZodiacUnknown}
	if !birthDate.IsZero() {
		p.BirthDate = StartOfDayUTC(birthDate)
		p.ZodiacSign = ZodiacFromDate(p.BirthDate)
	}
	return p
}

// zodiac boundaries: the sign starting on (month, day) runs until the next entry.
var zodiacStarts = []struct {
	month time.Month
	day   int
	sign  string
}{
	{time.January, 20, "aquarius"},
	{time.February, 19, "pisces"},
	{time.March, 21, "aries"},
	{time.April, 20, "taurus"},
	{time.May, 21, "gemini"},
	{time.June, 21, "cancer"},
	{time.July, 23, "leo"},
	{time.August, 23, "virgo"},
	{time.September, 23, "libra"},
	{time.October, 23, "scorpio"},
	{time.November, 22, "sagittarius"},
	{time.December, 22, "capricorn"},
}

// ZodiacFromDate returns the western zodiac sign for the UTC calendar day of t.
func ZodiacFromDate(t time.Time) string {
	t = t.UTC()
	month, day := t.Month(), t.Day()
	sign := "capricorn" // Dec 22 through Jan 19
	for _, z := range zodiacStarts {
		if month > z.month || (month == z.month && day >= z.day) {
			sign = z.sign
		}
	}
	return sign
}
