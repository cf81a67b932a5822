package models

import "github.com/google/uuid"

type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Password          string    `json:"password,omitempty"`
	Username          string    `json:"username"`
	UserProgram       string    `json:"user_program"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`

	IsAdmin bool `json:"is_admin"`
}

// PublicUser is the part of a user record other players may see.
type PublicUser struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	UserProgram       string    `json:"user_program"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID,
		Username:          u.Username,
		UserProgram:       u.UserProgram,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}

// Profile is the payload behind initial_data and request_profile.
type Profile struct {
	User  PublicUser     `json:"user"`
	Stats PlayerSnapshot `json:"stats"`
}
