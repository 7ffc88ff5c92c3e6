package database

import (
	"github.com/stretchr/testify/mock"
)

type MockCommunityRepository struct {
	mock.Mock
}

func (m *MockCommunityRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockCommunityRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCommunityRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCommunityRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockCommunityRepository) CreateCommunity(params CreateCommunityParams) (Community, error) {
	args := m.Called(params)
	return args.Get(0).(Community), args.Error(1)
}
func (m *MockCommunityRepository) GetCommunityBySlug(slug string) (Community, error) {
	args := m.Called(slug)
	return args.Get(0).(Community), args.Error(1)
}
func (m *MockCommunityRepository) ListCommunities() ([]Community, error) {
	args := m.Called()
	return args.Get(0).([]Community), args.Error(1)
}
func (m *MockCommunityRepository) AddMember(communityId, accountId int) error {
	args := m.Called(communityId, accountId)
	return args.Error(0)
}
func (m *MockCommunityRepository) RemoveMember(communityId, accountId int) error {
	args := m.Called(communityId, accountId)
	return args.Error(0)
}
func (m *MockCommunityRepository) IsMember(communityId, accountId int) bool {
	args := m.Called(communityId, accountId)
	return args.Bool(0)
}
func (m *MockCommunityRepository) ListMembers(communityId int) ([]User, error) {
	args := m.Called(communityId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockCommunityRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockCommunityRepository) GetMessages(communityId, before, limit int) ([]Message, error) {
	args := m.Called(communityId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockCommunityRepository) BulkCreateNotifications(notifications []Notification) error {
	args := m.Called(notifications)
	return args.Error(0)
}
func (m *MockCommunityRepository) ListNotifications(accountId int) ([]Notification, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockCommunityRepository) MarkNotificationRead(notificationId, accountId int) error {
	args := m.Called(notificationId, accountId)
	return args.Error(0)
}
