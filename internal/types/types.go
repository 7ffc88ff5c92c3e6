package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Community struct {
	Id              int       `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	MaxParticipants int       `json:"max_participants"`
	Members         []User    `json:"members,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	Community string    `json:"community"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationKindNewMessage marks notifications generated by chat fan-out.
const NotificationKindNewMessage = "new_message"

type Notification struct {
	Id        int       `json:"id"`
	Community string    `json:"community,omitempty"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
