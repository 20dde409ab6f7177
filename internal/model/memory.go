package model

import "time"

// Memory mirrors the `memories` table: a dated journal entry owned by one user.
type Memory struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	PhotoData   *string   `json:"photoData,omitempty"`
	Location    *string   `json:"location,omitempty"`
	MoodLevel   string    `json:"moodLevel"`
	Tags        *string   `json:"tags,omitempty"`
	IsShared    bool      `json:"isShared"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
