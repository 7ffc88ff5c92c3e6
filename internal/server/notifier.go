package server

import (
	"database/sql"
	"log"
	"sync"

	"github.com/samber/lo"

	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/stats"
	"github.com/edumesh/commchat/internal/types"
)

type fanoutJob struct {
	community types.Community
	sender    types.User
}

// Notifier creates notification rows for a broadcast chat message and pushes
// them to members with a live notification session. All work happens on a
// dedicated goroutine so persistence never blocks a connection's read loop.
type Notifier struct {
	db       database.CommunityRepository
	registry *NotificationRegistry
	log      *log.Logger
	stats    stats.StatsProvider
	jobs     chan fanoutJob
	done     chan struct{}

	// mu orders enqueues against Stop so a racing producer can never send
	// on the closed jobs channel.
	mu      sync.RWMutex
	stopped bool
}

func NewNotifier(db database.CommunityRepository, registry *NotificationRegistry,
	l *log.Logger, sp stats.StatsProvider) *Notifier {
	return &Notifier{
		db:       db,
		registry: registry,
		log:      l,
		stats:    sp,
		jobs:     make(chan fanoutJob, 256),
		done:     make(chan struct{}),
	}
}

func (n *Notifier) Run() {
	go func() {
		defer close(n.done)
		for job := range n.jobs {
			n.notifyMembers(job)
		}
	}()
}

// Stop drains queued jobs and waits for the worker to exit. Safe to call
// more than once.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.stopped {
		n.stopped = true
		close(n.jobs)
	}
	n.mu.Unlock()

	<-n.done
}

// NotifyCommunityMembers enqueues a fan-out for a message sent by sender in
// community. Delivery is best effort: if the queue is full, or the notifier
// is stopping, the job is dropped.
func (n *Notifier) NotifyCommunityMembers(community types.Community, sender types.User) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stopped {
		n.log.Printf("notifier stopped, dropping job for %q", community.Slug)
		return false
	}

	select {
	case n.jobs <- fanoutJob{community: community, sender: sender}:
		return true
	default:
		n.log.Printf("fan-out queue full, dropping job for %q", community.Slug)
		return false
	}
}

func (n *Notifier) notifyMembers(job fanoutJob) {
	members, err := n.db.ListMembers(job.community.Id)
	if err != nil {
		n.log.Printf("list members for %q: %v", job.community.Slug, err)
		return
	}

	recipients := lo.Filter(members, func(u database.User, _ int) bool {
		return u.Id != job.sender.Id
	})
	if len(recipients) == 0 {
		return
	}

	text := "New message from " + job.sender.Username
	link := "/community/" + job.community.Slug

	rows := lo.Map(recipients, func(u database.User, _ int) database.Notification {
		return database.Notification{
			RecipientId: u.Id,
			CommunityId: sql.NullInt64{Int64: int64(job.community.Id), Valid: true},
			Message:     text,
			Kind:        types.NotificationKindNewMessage,
			Link:        link,
		}
	})

	// A failed insert is logged but must not abort live delivery.
	if err := n.db.BulkCreateNotifications(rows); err != nil {
		n.log.Printf("bulk create notifications for %q: %v", job.community.Slug, err)
	} else {
		n.stats.Add(stats.NotificationsCreated, len(rows))
	}

	push := NotificationPush{
		Type:      types.NotificationKindNewMessage,
		Message:   text,
		Community: job.community.Slug,
		Link:      link,
	}

	for _, u := range recipients {
		if n.registry.Push(UserKey(u.Id), push) {
			n.stats.Incr(stats.NotificationsPushed)
		}
	}
}
