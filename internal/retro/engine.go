package retro

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chxlky/squadbooster/database"
	"github.com/chxlky/squadbooster/internal/events"
	"github.com/chxlky/squadbooster/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher pushes board events to connected clients.
type Publisher interface {
	Publish(ctx context.Context, evt events.BoardEvent) error
}

// ActionCreator is an external action tracker that accepts promoted
// retro findings.
type ActionCreator interface {
	CreateAction(ctx context.Context, action *models.Action) error
}

// Policy holds the board rules that are a product decision rather than a
// fixed invariant.
type Policy struct {
	// SameCategoryMerges rejects merging a good card into a bad one and
	// vice versa.
	SameCategoryMerges bool
	// EnforceStepGuards only allows adding cards during input, merging
	// during group and voting during vote.
	EnforceStepGuards bool
}

// Engine runs the retrospective workflow. It keeps no state between calls;
// everything lives in the store.
type Engine struct {
	Store     database.Store
	Publisher Publisher
	Actions   []ActionCreator
	Policy    Policy
	Now       func() time.Time
	NewID     func() string
}

func New(store database.Store, policy Policy) Engine {
	return Engine{
		Store:  store,
		Policy: policy,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) publish(ctx context.Context, evt events.BoardEvent) {
	if e.Publisher == nil {
		return
	}
	evt.At = e.now().UTC()
	if err := e.Publisher.Publish(ctx, evt); err != nil {
		zap.L().Warn("Failed to publish board event",
			zap.String("type", evt.Type), zap.String("ritualID", evt.RitualID), zap.Error(err))
	}
}

func (e Engine) guardStep(op string, ritual models.Ritual, want models.RetroStep) error {
	if !e.Policy.EnforceStepGuards {
		return nil
	}
	step := ritual.RetroStep
	if step == "" {
		step = models.StepInput
	}
	if step != want {
		return invalid(op, "retro is in the %s step, not %s", step, want)
	}
	return nil
}

func (e Engine) ListCards(ctx context.Context, ritualID string) ([]models.RetroCard, error) {
	const op = "list cards"
	cards, err := e.Store.ListCardsForRitual(ctx, ritualID)
	if err != nil {
		return nil, storeErr(op, "ritual", ritualID, err)
	}
	return cards, nil
}

// Results returns the ritual's cards ranked by votes.
func (e Engine) Results(ctx context.Context, ritualID string) ([]models.RetroCard, error) {
	const op = "results"
	if _, err := e.Store.GetRitual(ctx, ritualID); err != nil {
		return nil, storeErr(op, "ritual", ritualID, err)
	}
	cards, err := e.Store.ListCardsForRitual(ctx, ritualID)
	if err != nil {
		return nil, storeErr(op, "ritual", ritualID, err)
	}
	return RankByVotes(cards), nil
}

func (e Engine) AddCard(ctx context.Context, ritualID, content, category, createdBy string) (models.RetroCard, error) {
	const op = "add card"
	content = strings.TrimSpace(content)
	createdBy = strings.TrimSpace(createdBy)
	cat := models.Category(category)
	switch {
	case content == "":
		return models.RetroCard{}, invalid(op, "content is required")
	case !cat.Valid():
		return models.RetroCard{}, invalid(op, "category %q must be good or bad", category)
	case createdBy == "":
		return models.RetroCard{}, invalid(op, "createdBy is required")
	}

	card := models.RetroCard{
		ID:           e.newID(),
		RitualID:     ritualID,
		Content:      content,
		Category:     cat,
		Votes:        models.NewVoterSet(),
		GroupedCards: []models.GroupedCard{},
		CreatedBy:    createdBy,
		CreatedAt:    e.now().UTC(),
	}
	err := e.Store.Atomic(ctx, func(tx database.Store) error {
		ritual, err := tx.GetRitual(ctx, ritualID)
		if err != nil {
			return storeErr(op, "ritual", ritualID, err)
		}
		if err := e.guardStep(op, ritual, models.StepInput); err != nil {
			return err
		}
		return storeErr(op, "ritual", ritualID, tx.CreateCard(ctx, &card))
	})
	if err != nil {
		return models.RetroCard{}, storeErr(op, "ritual", ritualID, err)
	}

	e.publish(ctx, events.BoardEvent{Type: events.CardAdded, RitualID: ritualID, CardID: card.ID, Actor: createdBy})
	return card, nil
}

// ToggleVote adds voterID to the card's votes, or removes it if already
// present. Calling it twice restores the original vote set.
func (e Engine) ToggleVote(ctx context.Context, cardID, voterID string) (models.RetroCard, error) {
	const op = "vote"
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return models.RetroCard{}, invalid(op, "userName is required")
	}

	var card models.RetroCard
	err := e.Store.Atomic(ctx, func(tx database.Store) error {
		var err error
		card, err = tx.GetCard(ctx, cardID)
		if err != nil {
			return storeErr(op, "card", cardID, err)
		}
		if e.Policy.EnforceStepGuards {
			ritual, err := tx.GetRitual(ctx, card.RitualID)
			if err != nil {
				return storeErr(op, "ritual", card.RitualID, err)
			}
			if err := e.guardStep(op, ritual, models.StepVote); err != nil {
				return err
			}
		}
		card.Votes.Toggle(voterID)
		return storeErr(op, "card", cardID, tx.SaveCard(ctx, &card))
	})
	if err != nil {
		return models.RetroCard{}, storeErr(op, "card", cardID, err)
	}

	e.publish(ctx, events.BoardEvent{Type: events.CardVoted, RitualID: card.RitualID, CardID: card.ID, Actor: voterID})
	return card, nil
}

// AdvanceStep moves a retro board to target. See CheckTransition for the
// allowed moves.
func (e Engine) AdvanceStep(ctx context.Context, ritualID, target string) (models.Ritual, error) {
	const op = "advance step"
	step := models.RetroStep(target)
	if !step.Valid() {
		return models.Ritual{}, invalid(op, "step %q must be one of input, group, vote, completed", target)
	}

	var (
		ritual  models.Ritual
		changed bool
	)
	err := e.Store.Atomic(ctx, func(tx database.Store) error {
		var err error
		ritual, err = tx.GetRitual(ctx, ritualID)
		if err != nil {
			return storeErr(op, "ritual", ritualID, err)
		}
		if ritual.Type != models.RitualRetro {
			return invalid(op, "ritual is a %s, not a retro", ritual.Type)
		}
		if err := CheckTransition(ritual.RetroStep, step); err != nil {
			return invalid(op, "%v", err)
		}
		if ritual.RetroStep == step {
			return nil
		}
		ritual.RetroStep = step
		changed = true
		return storeErr(op, "ritual", ritualID, tx.SaveRitual(ctx, &ritual))
	})
	if err != nil {
		return models.Ritual{}, storeErr(op, "ritual", ritualID, err)
	}

	if changed {
		e.publish(ctx, events.BoardEvent{Type: events.StepChanged, RitualID: ritualID, Step: string(step)})
	}
	return ritual, nil
}

// MergeCards folds the source card into the target: the source's content is
// appended to the target's grouped cards and the source is deleted. Both
// happen in one transaction, and the source is deleted only if it still
// exists, so of two merges racing on the same source exactly one wins.
func (e Engine) MergeCards(ctx context.Context, targetCardID, sourceCardID string) (models.RetroCard, error) {
	const op = "merge"
	switch {
	case targetCardID == "" || sourceCardID == "":
		return models.RetroCard{}, invalid(op, "targetCardId and sourceCardId are required")
	case targetCardID == sourceCardID:
		return models.RetroCard{}, invalid(op, "cannot merge a card into itself")
	}

	var target models.RetroCard
	err := e.Store.Atomic(ctx, func(tx database.Store) error {
		var err error
		target, err = tx.GetCard(ctx, targetCardID)
		if err != nil {
			return storeErr(op, "target card", targetCardID, err)
		}
		source, err := tx.GetCard(ctx, sourceCardID)
		if err != nil {
			return storeErr(op, "source card", sourceCardID, err)
		}
		if source.RitualID != target.RitualID {
			return invalid(op, "cards belong to different rituals")
		}
		if e.Policy.SameCategoryMerges && source.Category != target.Category {
			return invalid(op, "cannot merge a %s card into a %s card", source.Category, target.Category)
		}
		if e.Policy.EnforceStepGuards {
			ritual, err := tx.GetRitual(ctx, target.RitualID)
			if err != nil {
				return storeErr(op, "ritual", target.RitualID, err)
			}
			if err := e.guardStep(op, ritual, models.StepGroup); err != nil {
				return err
			}
		}

		if err := tx.DeleteCard(ctx, source.ID); err != nil {
			return storeErr(op, "source card", sourceCardID, err)
		}
		target.GroupedCards = append(target.GroupedCards, models.GroupedCard{
			Content:    source.Content,
			OriginalID: source.ID,
		})
		target.IsGroupHeader = true
		return storeErr(op, "target card", targetCardID, tx.SaveCard(ctx, &target))
	})
	if err != nil {
		return models.RetroCard{}, storeErr(op, "card", targetCardID, err)
	}

	e.publish(ctx, events.BoardEvent{Type: events.CardMerged, RitualID: target.RitualID, CardID: target.ID})
	return target, nil
}

func (e Engine) DeleteCard(ctx context.Context, cardID string) error {
	const op = "delete card"
	card, err := e.Store.GetCard(ctx, cardID)
	if err != nil {
		return storeErr(op, "card", cardID, err)
	}
	if err := e.Store.DeleteCard(ctx, cardID); err != nil {
		return storeErr(op, "card", cardID, err)
	}
	e.publish(ctx, events.BoardEvent{Type: events.CardDeleted, RitualID: card.RitualID, CardID: cardID})
	return nil
}

// PromoteOptions describe the action created from a retro card.
type PromoteOptions struct {
	CardID    string
	Title     string
	Assignee  string
	CreatedBy string
}

// PrepareAction builds the action a card would be promoted into without
// contacting any action tracker. The title defaults to the card content.
func (e Engine) PrepareAction(ctx context.Context, opts PromoteOptions) (models.Action, error) {
	const op = "promote card"
	createdBy := strings.TrimSpace(opts.CreatedBy)
	if createdBy == "" {
		return models.Action{}, invalid(op, "createdBy is required")
	}
	card, err := e.Store.GetCard(ctx, opts.CardID)
	if err != nil {
		return models.Action{}, storeErr(op, "card", opts.CardID, err)
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = card.Content
	}
	return models.Action{
		ID:           e.newID(),
		Title:        title,
		Assignee:     strings.TrimSpace(opts.Assignee),
		Status:       models.ActionTodo,
		Priority:     models.PriorityMedium,
		RitualID:     card.RitualID,
		SourceCardID: card.ID,
		CreatedBy:    createdBy,
	}, nil
}

// DispatchAction hands the action to every configured action tracker. The
// retro board is never touched; failures are collected and returned for
// the caller to log.
func (e Engine) DispatchAction(ctx context.Context, action models.Action) error {
	var errs []error
	for _, sink := range e.Actions {
		a := action
		if err := sink.CreateAction(ctx, &a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PromoteCard prepares and dispatches an action synchronously.
func (e Engine) PromoteCard(ctx context.Context, opts PromoteOptions) (models.Action, error) {
	action, err := e.PrepareAction(ctx, opts)
	if err != nil {
		return models.Action{}, err
	}
	return action, e.DispatchAction(ctx, action)
}
