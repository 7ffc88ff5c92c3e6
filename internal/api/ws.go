package api

import (
	"database/sql"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/edumesh/commchat/internal/types"
)

func (s *CommChatApp) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
}

// serveChatWs upgrades an authenticated request into a chat session for the
// community named in the path. An unknown slug is rejected before the
// upgrade, so the connection is never admitted to the room registry.
func (s *CommChatApp) serveChatWs(w http.ResponseWriter, r *http.Request) {
	user, errResp := s.sessionUser(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbCommunity, err := s.db.GetCommunityBySlug(r.PathValue("slug"))
	if err != nil {
		errResp := communityLookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.cs.ServeChat(conn, user, types.Community{
		Id:   dbCommunity.Id,
		Slug: dbCommunity.Slug,
		Name: dbCommunity.Name,
	})
}

// serveNotificationsWs upgrades an authenticated request into the user's
// notification session.
func (s *CommChatApp) serveNotificationsWs(w http.ResponseWriter, r *http.Request) {
	user, errResp := s.sessionUser(r)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.cs.ServeNotifications(conn, user)
}

func (s *CommChatApp) sessionUser(r *http.Request) (types.User, *ApiError) {
	id, ok := UserId(r.Context())
	if !ok {
		return types.User{}, NewUnauthorizedError()
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, NewNotFoundError()
		}
		return types.User{}, NewInternalServerError(err)
	}

	return types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, nil
}
