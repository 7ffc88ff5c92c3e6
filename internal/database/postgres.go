package database

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/teris-io/shortid"
)

var (
	ErrCommunityFull = errors.New("community is full")
	ErrNotMember     = errors.New("account is not a member")
)

const uniqueViolation = "23505"

type PgCommunityRepository struct {
	conn *sql.DB
}

func NewPgCommunityRepository(dsn string) (*PgCommunityRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgCommunityRepository{conn: db}, nil
}

func (db *PgCommunityRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *PgCommunityRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgCommunityRepository) CreateAccount(params CreateAccountParams) (User, error) {
	row := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (db *PgCommunityRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (db *PgCommunityRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a community name to its URL slug.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (db *PgCommunityRepository) CreateCommunity(params CreateCommunityParams) (Community, error) {
	slug := Slugify(params.Name)

	for {
		row := db.conn.QueryRow(
			"INSERT INTO communities (slug, name, description, owner_id, max_participants, created_at, updated_at) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $6) "+
				"RETURNING id, slug, name, description, owner_id, max_participants, created_at, updated_at",
			slug,
			params.Name,
			params.Description,
			params.OwnerId,
			params.MaxParticipants,
			time.Now().UTC(),
		)

		var c Community
		err := row.Scan(&c.Id, &c.Slug, &c.Name, &c.Description, &c.OwnerId,
			&c.MaxParticipants, &c.CreatedAt, &c.UpdatedAt)
		if err == nil {
			return c, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation &&
			pqErr.Constraint == "communities_slug_key" {
			suffix, sidErr := shortid.Generate()
			if sidErr != nil {
				return Community{}, fmt.Errorf("generate slug suffix: %w", sidErr)
			}
			slug = Slugify(params.Name) + "-" + strings.ToLower(suffix)
			continue
		}

		return Community{}, err
	}
}

func (db *PgCommunityRepository) GetCommunityBySlug(slug string) (Community, error) {
	row := db.conn.QueryRow(
		"SELECT id, slug, name, description, owner_id, max_participants, created_at, updated_at "+
			"FROM communities WHERE slug = $1 LIMIT 1",
		slug,
	)

	var c Community
	err := row.Scan(&c.Id, &c.Slug, &c.Name, &c.Description, &c.OwnerId,
		&c.MaxParticipants, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (db *PgCommunityRepository) ListCommunities() ([]Community, error) {
	rows, err := db.conn.Query(
		"SELECT id, slug, name, description, owner_id, max_participants, created_at, updated_at " +
			"FROM communities ORDER BY created_at",
	)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	var communities []Community
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.Id, &c.Slug, &c.Name, &c.Description, &c.OwnerId,
			&c.MaxParticipants, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}

	return communities, rows.Err()
}

func (db *PgCommunityRepository) AddMember(communityId, accountId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var max int
	err = tx.QueryRow(
		"SELECT max_participants FROM communities WHERE id = $1 FOR UPDATE",
		communityId,
	).Scan(&max)
	if err != nil {
		return err
	}

	// counted after the row lock is held, so a transaction that waited on
	// the lock sees memberships committed by the lock holder
	var count int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM community_members WHERE community_id = $1",
		communityId,
	).Scan(&count)
	if err != nil {
		return err
	}

	if max > 0 && count >= max {
		return ErrCommunityFull
	}

	_, err = tx.Exec(
		"INSERT INTO community_members (community_id, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (community_id, account_id) DO NOTHING",
		communityId,
		accountId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgCommunityRepository) RemoveMember(communityId, accountId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM community_members WHERE community_id = $1 AND account_id = $2",
		communityId,
		accountId,
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotMember
	}
	return nil
}

func (db *PgCommunityRepository) IsMember(communityId, accountId int) bool {
	var exists bool
	err := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM community_members WHERE community_id = $1 AND account_id = $2)",
		communityId,
		accountId,
	).Scan(&exists)

	return err == nil && exists
}

func (db *PgCommunityRepository) ListMembers(communityId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email FROM accounts a "+
			"JOIN community_members m ON m.account_id = a.id "+
			"WHERE m.community_id = $1 ORDER BY a.id",
		communityId,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Username, &u.EmailAddress); err != nil {
			return nil, err
		}
		members = append(members, u)
	}

	return members, rows.Err()
}

func (db *PgCommunityRepository) CreateMessage(msg Message) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (community_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		msg.CommunityId,
		msg.SenderId,
		msg.Content,
		time.Now().UTC(),
	)

	err := row.Scan(&msg.Id, &msg.CreatedAt)
	return msg, err
}

// GetMessages returns up to limit messages in creation order. A non-zero
// before narrows the window to messages older than that message id.
func (db *PgCommunityRepository) GetMessages(communityId, before, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.community_id, m.sender_id, a.username, m.content, m.created_at "+
			"FROM messages m JOIN accounts a ON m.sender_id = a.id "+
			"WHERE m.community_id = $1 AND ($2 = 0 OR m.id < $2) "+
			"ORDER BY m.created_at DESC, m.id DESC LIMIT $3",
		communityId,
		before,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.CommunityId, &m.SenderId, &m.SenderUsername,
			&m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseMessages(messages)
	return messages, nil
}

// reverseMessages flips the newest-first query window into the oldest-first
// order history consumers expect.
func reverseMessages(messages []Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

func (db *PgCommunityRepository) BulkCreateNotifications(notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("INSERT INTO notifications (recipient_id, community_id, message, kind, link, is_read, created_at) VALUES ")

	now := time.Now().UTC()
	for i, n := range notifications {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, n.RecipientId, n.CommunityId, n.Message, n.Kind, n.Link, false, now)
	}

	_, err := db.conn.Exec(sb.String(), args...)
	if err != nil {
		return fmt.Errorf("bulk create notifications: %w", err)
	}
	return nil
}

func (db *PgCommunityRepository) ListNotifications(accountId int) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, recipient_id, community_id, message, kind, link, is_read, created_at "+
			"FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC, id DESC",
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.Id, &n.RecipientId, &n.CommunityId, &n.Message,
			&n.Kind, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgCommunityRepository) MarkNotificationRead(notificationId, accountId int) error {
	res, err := db.conn.Exec(
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2",
		notificationId,
		accountId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
