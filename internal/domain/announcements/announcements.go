package announcements

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAnnouncementTitleEmpty   = errors.New("announcement title is empty")
	ErrAnnouncementContentEmpty = errors.New("announcement content is empty")
	ErrAnnouncementKindInvalid  = errors.New("announcement kind is invalid")
)

// Kind is the severity tag shown on the storefront information board.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindSuccess Kind = "success"
	KindUrgent  Kind = "urgent"
)

func ParseKind(kind string) (Kind, error) {
	switch Kind(kind) {
	case KindInfo, KindWarning, KindSuccess, KindUrgent:
		return Kind(kind), nil
	default:
		return "", ErrAnnouncementKindInvalid
	}
}

type Announcement struct {
	ID        string
	Title     string
	Content   string
	Kind      Kind
	IsActive  bool
	CreatedAt time.Time
}

func NewAnnouncement(title, content string, kind Kind) (*Announcement, error) {
	if title == "" {
		return nil, ErrAnnouncementTitleEmpty
	}

	if content == "" {
		return nil, ErrAnnouncementContentEmpty
	}

	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	return &Announcement{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Kind:      kind,
		IsActive:  true,
		CreatedAt: time.Now(),
	}, nil
}
