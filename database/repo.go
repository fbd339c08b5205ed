package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/squadbooster/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrInvalid  = errors.New("invalid record")
)

// Store is the persistence surface the retro engine works against. All
// methods of a Store obtained through Atomic share one transaction.
type Store interface {
	ListCardsForRitual(ctx context.Context, ritualID string) ([]models.RetroCard, error)
	CreateCard(ctx context.Context, card *models.RetroCard) error
	GetCard(ctx context.Context, id string) (models.RetroCard, error)
	SaveCard(ctx context.Context, card *models.RetroCard) error
	DeleteCard(ctx context.Context, id string) error

	GetRitual(ctx context.Context, id string) (models.Ritual, error)
	SaveRitual(ctx context.Context, ritual *models.Ritual) error

	Atomic(ctx context.Context, fn func(tx Store) error) error
}

// Repo is the gorm-backed card, ritual and action store.
type Repo struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, Now: time.Now}
}

func (r *Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Repo) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx, Now: r.Now})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
