package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Community struct {
	Id              int
	Slug            string
	Name            string
	Description     string
	OwnerId         int
	MaxParticipants int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Message struct {
	Id             int
	CommunityId    int
	SenderId       int
	SenderUsername string
	Content        string
	CreatedAt      time.Time
}

type Notification struct {
	Id          int
	RecipientId int
	CommunityId sql.NullInt64
	Message     string
	Kind        string
	Link        string
	IsRead      bool
	CreatedAt   time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateCommunityParams struct {
	Name            string
	Description     string
	OwnerId         int
	MaxParticipants int
}
