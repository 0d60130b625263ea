package domain

import "time"

// User is the read-only view of the account record owned by the external auth
// service. This subsystem never writes it.
type User struct {
	ID                string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name              string    `gorm:"column:name;size:100" json:"name"`
	Username          string    `gorm:"column:username;size:50;index" json:"username"`
	ProfilePictureURL string    `gorm:"column:profile_picture_url;size:500" json:"profilePictureUrl"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName prefers the full name, falling back to the username
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// UserSummary is the identity snapshot attached to messages and member lists
type UserSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

// Summary converts User to UserSummary
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:                u.ID,
		Name:              u.DisplayName(),
		ProfilePictureURL: u.ProfilePictureURL,
	}
}
