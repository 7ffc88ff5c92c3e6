package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/types"
)

type CreateCommunityRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=2000"`
	MaxParticipants int    `json:"max_participants" validate:"gte=0"`
}

func (s *CommChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *CommChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *CommChatApp) createCommunity(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	community, err := s.db.CreateCommunity(database.CreateCommunityParams{
		Name:            req.Name,
		Description:     req.Description,
		OwnerId:         userId,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// the owner is always a member of their own community
	if err := s.db.AddMember(community.Id, userId); err != nil {
		s.log.Printf("add owner to community %q: %v", community.Slug, err)
	}

	s.writeJson(w, http.StatusCreated, communityResponse(community))
}

func (s *CommChatApp) listCommunities(w http.ResponseWriter, r *http.Request) {
	dbCommunities, err := s.db.ListCommunities()
	if err != nil {
		s.log.Println("list communities:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	communities := make([]types.Community, 0, len(dbCommunities))
	for _, c := range dbCommunities {
		communities = append(communities, communityResponse(c))
	}

	s.writeJson(w, http.StatusOK, communities)
}

func (s *CommChatApp) joinCommunity(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	community, err := s.db.GetCommunityBySlug(r.PathValue("slug"))
	if err != nil {
		errResp := communityLookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// re-joining is a no-op; a full community must not reject its own members
	if s.db.IsMember(community.Id, userId) {
		s.writeJson(w, http.StatusNoContent, nil)
		return
	}

	if err := s.db.AddMember(community.Id, userId); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrCommunityFull) {
			errResp = NewConflictError("community is full")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *CommChatApp) exitCommunity(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	community, err := s.db.GetCommunityBySlug(r.PathValue("slug"))
	if err != nil {
		errResp := communityLookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.RemoveMember(community.Id, userId); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotMember) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *CommChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	community, err := s.db.GetCommunityBySlug(r.PathValue("slug"))
	if err != nil {
		errResp := communityLookupError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var before, limit int
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		before, err = strconv.Atoi(beforeStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.GetMessages(community.Id, before, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, msg := range dbMessages {
		messages = append(messages, types.Message{
			Id:        msg.Id,
			Community: community.Slug,
			UserId:    msg.SenderId,
			Username:  msg.SenderUsername,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *CommChatApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbNotifications, err := s.db.ListNotifications(userId)
	if err != nil {
		s.log.Println("list notifications:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	notifications := make([]types.Notification, 0, len(dbNotifications))
	for _, n := range dbNotifications {
		notifications = append(notifications, types.Notification{
			Id:        n.Id,
			Message:   n.Message,
			Kind:      n.Kind,
			Link:      n.Link,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, notifications)
}

func (s *CommChatApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	notificationId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkNotificationRead(notificationId, userId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func communityResponse(c database.Community) types.Community {
	return types.Community{
		Id:              c.Id,
		Slug:            c.Slug,
		Name:            c.Name,
		Description:     c.Description,
		MaxParticipants: c.MaxParticipants,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func communityLookupError(err error) *ApiError {
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError()
	}
	return NewInternalServerError(err)
}
