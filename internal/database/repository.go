package database

// CommunityRepository is the storage boundary for the messaging core. The
// chat and notification handlers only ever read memberships; the mutating
// calls exist for the REST surface.
type CommunityRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateCommunity(params CreateCommunityParams) (Community, error)
	GetCommunityBySlug(slug string) (Community, error)
	ListCommunities() ([]Community, error)
	AddMember(communityId, accountId int) error
	RemoveMember(communityId, accountId int) error
	IsMember(communityId, accountId int) bool
	ListMembers(communityId int) ([]User, error)
	CreateMessage(msg Message) (Message, error)
	GetMessages(communityId, before, limit int) ([]Message, error)
	BulkCreateNotifications(notifications []Notification) error
	ListNotifications(accountId int) ([]Notification, error)
	MarkNotificationRead(notificationId, accountId int) error
}
