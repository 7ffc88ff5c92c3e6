package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edumesh/commchat/internal/config"
	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/stats"
	"github.com/edumesh/commchat/internal/testutil"
	"github.com/edumesh/commchat/internal/types"
)

func newHandlerApp(t *testing.T, db database.CommunityRepository) *CommChatApp {
	t.Helper()

	sp := &stats.MockStatsUpdater{}
	sp.On("Incr", mock.Anything).Maybe()
	sp.On("RegisterMetric", mock.Anything).Maybe()

	cfg := &config.Config{
		ServerAddr:  "localhost:8080",
		DatabaseDSN: "dsn",
		SigningKey:  []byte("secret"),
	}
	return NewCommChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, sp, cfg)
}

func authedRequest(method, target string, body []byte, userId int) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(WithUserId(req.Context(), userId))
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{name: "successful health check"},
		{name: "failed health check", mockErr: errors.New("db error")},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCommunityRepository{}
			db.On("Ping").Return(tc.mockErr).Once()
			app := newHandlerApp(t, db)

			rr := httptest.NewRecorder()
			app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func Test_createCommunity(t *testing.T) {
	t.Run("successfully creates a community", func(t *testing.T) {
		db := &database.MockCommunityRepository{}
		app := newHandlerApp(t, db)

		created := database.Community{
			Id:        7,
			Slug:      "study-group",
			Name:      "Study Group",
			OwnerId:   1,
			CreatedAt: time.Now().UTC(),
		}
		db.On("CreateCommunity", database.CreateCommunityParams{
			Name:            "Study Group",
			Description:     "weekly sessions",
			OwnerId:         1,
			MaxParticipants: 50,
		}).Return(created, nil)
		db.On("AddMember", created.Id, 1).Return(nil)

		body, _ := json.Marshal(CreateCommunityRequest{
			Name:            "Study Group",
			Description:     "weekly sessions",
			MaxParticipants: 50,
		})
		rr := httptest.NewRecorder()
		app.createCommunity(rr, authedRequest(http.MethodPost, "/api/communities", body, 1))

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp types.Community
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "study-group", resp.Slug)
		db.AssertCalled(t, "AddMember", created.Id, 1)
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		db := &database.MockCommunityRepository{}
		app := newHandlerApp(t, db)

		body, _ := json.Marshal(CreateCommunityRequest{Name: ""})
		rr := httptest.NewRecorder()
		app.createCommunity(rr, authedRequest(http.MethodPost, "/api/communities", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		db.AssertNotCalled(t, "CreateCommunity", mock.Anything)
	})
}

func Test_joinCommunity(t *testing.T) {
	tcases := []struct {
		name          string
		lookupErr     error
		alreadyMember bool
		addMemberErr  error
		expectedCode  int
	}{
		{
			name:         "successfully joins",
			expectedCode: http.StatusNoContent,
		},
		{
			name:          "re-join is a no-op",
			alreadyMember: true,
			expectedCode:  http.StatusNoContent,
		},
		{
			name:         "unknown community",
			lookupErr:    sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "community full",
			addMemberErr: database.ErrCommunityFull,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "storage failure",
			addMemberErr: errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCommunityRepository{}
			app := newHandlerApp(t, db)

			community := database.Community{Id: 7, Slug: "study-group"}
			db.On("GetCommunityBySlug", "study-group").Return(community, tc.lookupErr)
			db.On("IsMember", community.Id, 1).Return(tc.alreadyMember)
			db.On("AddMember", community.Id, 1).Return(tc.addMemberErr)

			req := authedRequest(http.MethodPost, "/api/communities/study-group/join", nil, 1)
			req.SetPathValue("slug", "study-group")
			rr := httptest.NewRecorder()
			app.joinCommunity(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.alreadyMember {
				db.AssertNotCalled(t, "AddMember", community.Id, 1)
			}
		})
	}
}

func Test_exitCommunity(t *testing.T) {
	t.Run("not a member", func(t *testing.T) {
		db := &database.MockCommunityRepository{}
		app := newHandlerApp(t, db)

		community := database.Community{Id: 7, Slug: "study-group"}
		db.On("GetCommunityBySlug", "study-group").Return(community, nil)
		db.On("RemoveMember", community.Id, 1).Return(database.ErrNotMember)

		req := authedRequest(http.MethodPost, "/api/communities/study-group/exit", nil, 1)
		req.SetPathValue("slug", "study-group")
		rr := httptest.NewRecorder()
		app.exitCommunity(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_getMessages(t *testing.T) {
	db := &database.MockCommunityRepository{}
	app := newHandlerApp(t, db)

	community := database.Community{Id: 7, Slug: "study-group"}
	db.On("GetCommunityBySlug", "study-group").Return(community, nil)
	db.On("GetMessages", community.Id, 0, 10).Return([]database.Message{
		{Id: 1, CommunityId: 7, SenderId: 1, SenderUsername: "alice", Content: "first"},
		{Id: 2, CommunityId: 7, SenderId: 2, SenderUsername: "bob", Content: "second"},
	}, nil)

	req := authedRequest(http.MethodGet, "/api/communities/study-group/messages?limit=10", nil, 1)
	req.SetPathValue("slug", "study-group")
	rr := httptest.NewRecorder()
	app.getMessages(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var messages []types.Message
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content, "expected oldest message first")
	assert.Equal(t, "alice", messages[0].Username)
	assert.Equal(t, "study-group", messages[0].Community)
}

func Test_markNotificationRead(t *testing.T) {
	tcases := []struct {
		name         string
		target       string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "successfully marks read",
			target:       "42",
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "not the recipient",
			target:       "42",
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "invalid id",
			target:       "not-a-number",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCommunityRepository{}
			app := newHandlerApp(t, db)

			db.On("MarkNotificationRead", 42, 1).Return(tc.mockErr)

			req := authedRequest(http.MethodPost, "/api/notifications/"+tc.target+"/read", nil, 1)
			req.SetPathValue("id", tc.target)
			rr := httptest.NewRecorder()
			app.markNotificationRead(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func Test_listNotifications(t *testing.T) {
	db := &database.MockCommunityRepository{}
	app := newHandlerApp(t, db)

	db.On("ListNotifications", 1).Return([]database.Notification{
		{Id: 2, RecipientId: 1, Message: "New message from bob", Kind: "new_message", Link: "/community/study-group"},
		{Id: 1, RecipientId: 1, Message: "New message from carol", Kind: "new_message", IsRead: true},
	}, nil)

	rr := httptest.NewRecorder()
	app.listNotifications(rr, authedRequest(http.MethodGet, "/api/notifications", nil, 1))

	assert.Equal(t, http.StatusOK, rr.Code)

	var notifications []types.Notification
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&notifications))
	require.Len(t, notifications, 2)
	assert.Equal(t, "New message from bob", notifications[0].Message)
	assert.False(t, notifications[0].IsRead)
	assert.True(t, notifications[1].IsRead)
}
