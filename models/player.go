package models

import "time"

// Player представляет участника дуэлей. Создаётся при первой активности,
// никогда не удаляется — только деактивируется.
type Player struct {
	ID          int       `json:"id"`
	ExternalID  string    `json:"external_id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
