package retro_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chxlky/squadbooster/database"
	"github.com/chxlky/squadbooster/internal/events"
	"github.com/chxlky/squadbooster/internal/models"
	"github.com/chxlky/squadbooster/internal/retro"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	Engine retro.Engine
	Repo   *database.Repo
	Events *recordingPublisher
	Ctx    context.Context
}

func newTestEnv(t *testing.T, policy retro.Policy) testEnv {
	t.Helper()
	db, err := database.Init(filepath.Join(t.TempDir(), "retro.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	repo := database.NewRepo(db)
	pub := &recordingPublisher{}
	eng := retro.New(repo, policy)
	eng.Publisher = pub
	eng.Now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Repo: repo, Events: pub, Ctx: context.Background()}
}

func (env testEnv) newRitual(t *testing.T, ritualType models.RitualType) models.Ritual {
	t.Helper()
	ritual := models.Ritual{
		Name:      "Sprint 12 retro",
		Type:      ritualType,
		Date:      time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		CreatedBy: "ada",
	}
	require.NoError(t, env.Repo.CreateRitual(env.Ctx, &ritual))
	return ritual
}

func (env testEnv) addCard(t *testing.T, ritualID, content string, category models.Category) models.RetroCard {
	t.Helper()
	card, err := env.Engine.AddCard(env.Ctx, ritualID, content, string(category), "ada")
	require.NoError(t, err)
	return card
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BoardEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.BoardEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingActions struct {
	mu      sync.Mutex
	actions []models.Action
	err     error
}

func (r *recordingActions) CreateAction(_ context.Context, action *models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.actions = append(r.actions, *action)
	return nil
}

func TestAddCard(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	ritual := env.newRitual(t, models.RitualRetro)

	t.Run("trims content and stores the card", func(t *testing.T) {
		card, err := env.Engine.AddCard(env.Ctx, ritual.ID, "  Too many meetings \n", "bad", "ada")
		require.NoError(t, err)
		assert.Equal(t, "Too many meetings", card.Content)
		assert.Equal(t, models.CategoryBad, card.Category)
		assert.Equal(t, ritual.ID, card.RitualID)
		assert.Equal(t, 0, card.Votes.Len())
		assert.Empty(t, card.GroupedCards)
		assert.False(t, card.IsGroupHeader)

		stored, err := env.Repo.GetCard(env.Ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, card.Content, stored.Content)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		cases := []struct {
			name, content, category, createdBy string
		}{
			{"blank content", "   ", "good", "ada"},
			{"unknown category", "Nice", "meh", "ada"},
			{"missing author", "Nice", "good", " "},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := env.Engine.AddCard(env.Ctx, ritual.ID, tc.content, tc.category, tc.createdBy)
				require.Error(t, err)
				assert.True(t, retro.IsValidation(err), "got %v", err)
			})
		}
	})

	t.Run("requires an existing ritual", func(t *testing.T) {
		_, err := env.Engine.AddCard(env.Ctx, "missing", "Nice", "good", "ada")
		require.Error(t, err)
		assert.True(t, retro.IsNotFound(err), "got %v", err)
		assert.EqualError(t, err, "add card failed: ritual not found")
	})

	t.Run("publishes a board event", func(t *testing.T) {
		assert.Contains(t, env.Events.types(), events.CardAdded)
	})
}

func TestToggleVote(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	ritual := env.newRitual(t, models.RitualRetro)
	card := env.addCard(t, ritual.ID, "Great demo", models.CategoryGood)

	t.Run("toggling twice restores the vote set", func(t *testing.T) {
		voted, err := env.Engine.ToggleVote(env.Ctx, card.ID, "grace")
		require.NoError(t, err)
		assert.Equal(t, []string{"grace"}, voted.Votes.Voters())

		unvoted, err := env.Engine.ToggleVote(env.Ctx, card.ID, "grace")
		require.NoError(t, err)
		assert.Equal(t, 0, unvoted.Votes.Len())

		stored, err := env.Repo.GetCard(env.Ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Votes.Len())
	})

	t.Run("distinct voters accumulate", func(t *testing.T) {
		_, err := env.Engine.ToggleVote(env.Ctx, card.ID, "ada")
		require.NoError(t, err)
		voted, err := env.Engine.ToggleVote(env.Ctx, card.ID, "linus")
		require.NoError(t, err)
		assert.Equal(t, []string{"ada", "linus"}, voted.Votes.Voters())
	})

	t.Run("missing card", func(t *testing.T) {
		_, err := env.Engine.ToggleVote(env.Ctx, "missing", "ada")
		assert.True(t, retro.IsNotFound(err), "got %v", err)
	})

	t.Run("blank voter", func(t *testing.T) {
		_, err := env.Engine.ToggleVote(env.Ctx, card.ID, "  ")
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})
}

func TestAdvanceStep(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})

	t.Run("moves forward one step at a time", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualRetro)
		assert.Equal(t, models.StepInput, ritual.RetroStep)

		for _, step := range []string{"group", "vote", "completed"} {
			updated, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, step)
			require.NoError(t, err)
			assert.Equal(t, models.RetroStep(step), updated.RetroStep)
		}

		stored, err := env.Repo.GetRitual(env.Ctx, ritual.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StepCompleted, stored.RetroStep)
	})

	t.Run("rejects moving backwards", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualRetro)
		_, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "group")
		require.NoError(t, err)

		_, err = env.Engine.AdvanceStep(env.Ctx, ritual.ID, "input")
		require.Error(t, err)
		assert.True(t, retro.IsValidation(err), "got %v", err)

		stored, err := env.Repo.GetRitual(env.Ctx, ritual.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StepGroup, stored.RetroStep)
	})

	t.Run("rejects skipping a step", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualRetro)
		_, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "vote")
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})

	t.Run("repeating the current step is a no-op", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualRetro)
		before := len(env.Events.types())
		updated, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "input")
		require.NoError(t, err)
		assert.Equal(t, models.StepInput, updated.RetroStep)
		assert.Len(t, env.Events.types(), before)
	})

	t.Run("rejects unknown steps", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualRetro)
		_, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "party")
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})

	t.Run("rejects non retro rituals", func(t *testing.T) {
		ritual := env.newRitual(t, models.RitualDaily)
		_, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "group")
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})

	t.Run("missing ritual", func(t *testing.T) {
		_, err := env.Engine.AdvanceStep(env.Ctx, "missing", "group")
		assert.True(t, retro.IsNotFound(err), "got %v", err)
	})
}

func TestMergeCards(t *testing.T) {
	t.Run("folds the source into the target and deletes it", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		ritual := env.newRitual(t, models.RitualRetro)
		target := env.addCard(t, ritual.ID, "Too many meetings", models.CategoryBad)
		source := env.addCard(t, ritual.ID, "Too many standups", models.CategoryBad)

		merged, err := env.Engine.MergeCards(env.Ctx, target.ID, source.ID)
		require.NoError(t, err)
		assert.True(t, merged.IsGroupHeader)
		require.Len(t, merged.GroupedCards, 1)
		assert.Equal(t, models.GroupedCard{Content: "Too many standups", OriginalID: source.ID}, merged.GroupedCards[0])

		_, err = env.Repo.GetCard(env.Ctx, source.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)

		stored, err := env.Repo.GetCard(env.Ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, merged.GroupedCards, stored.GroupedCards)
		assert.True(t, stored.IsGroupHeader)
	})

	t.Run("second merge of the same source fails", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		ritual := env.newRitual(t, models.RitualRetro)
		target := env.addCard(t, ritual.ID, "Flaky CI", models.CategoryBad)
		source := env.addCard(t, ritual.ID, "CI is red again", models.CategoryBad)

		_, err := env.Engine.MergeCards(env.Ctx, target.ID, source.ID)
		require.NoError(t, err)

		_, err = env.Engine.MergeCards(env.Ctx, target.ID, source.ID)
		require.Error(t, err)
		assert.True(t, retro.IsNotFound(err), "got %v", err)
		assert.EqualError(t, err, "merge failed: source card not found")

		stored, err := env.Repo.GetCard(env.Ctx, target.ID)
		require.NoError(t, err)
		assert.Len(t, stored.GroupedCards, 1)
	})

	t.Run("self merge is rejected without side effects", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		ritual := env.newRitual(t, models.RitualRetro)
		card := env.addCard(t, ritual.ID, "Pairing worked", models.CategoryGood)

		_, err := env.Engine.MergeCards(env.Ctx, card.ID, card.ID)
		require.Error(t, err)
		assert.True(t, retro.IsValidation(err), "got %v", err)

		stored, err := env.Repo.GetCard(env.Ctx, card.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsGroupHeader)
		assert.Empty(t, stored.GroupedCards)
	})

	t.Run("missing target leaves the source alone", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		ritual := env.newRitual(t, models.RitualRetro)
		source := env.addCard(t, ritual.ID, "Pairing worked", models.CategoryGood)

		_, err := env.Engine.MergeCards(env.Ctx, "missing", source.ID)
		assert.True(t, retro.IsNotFound(err), "got %v", err)

		_, err = env.Repo.GetCard(env.Ctx, source.ID)
		assert.NoError(t, err)
	})

	t.Run("cards from different rituals cannot merge", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		a := env.addCard(t, env.newRitual(t, models.RitualRetro).ID, "One", models.CategoryGood)
		b := env.addCard(t, env.newRitual(t, models.RitualRetro).ID, "Two", models.CategoryGood)

		_, err := env.Engine.MergeCards(env.Ctx, a.ID, b.ID)
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})

	t.Run("cross category merges follow policy", func(t *testing.T) {
		open := newTestEnv(t, retro.Policy{})
		ritual := open.newRitual(t, models.RitualRetro)
		good := open.addCard(t, ritual.ID, "Fast reviews", models.CategoryGood)
		bad := open.addCard(t, ritual.ID, "Slow reviews", models.CategoryBad)
		_, err := open.Engine.MergeCards(open.Ctx, good.ID, bad.ID)
		assert.NoError(t, err)

		strict := newTestEnv(t, retro.Policy{SameCategoryMerges: true})
		ritual = strict.newRitual(t, models.RitualRetro)
		good = strict.addCard(t, ritual.ID, "Fast reviews", models.CategoryGood)
		bad = strict.addCard(t, ritual.ID, "Slow reviews", models.CategoryBad)
		_, err = strict.Engine.MergeCards(strict.Ctx, good.ID, bad.ID)
		assert.True(t, retro.IsValidation(err), "got %v", err)
		_, err = strict.Repo.GetCard(strict.Ctx, bad.ID)
		assert.NoError(t, err)
	})

	t.Run("concurrent merges of one source have a single winner", func(t *testing.T) {
		env := newTestEnv(t, retro.Policy{})
		ritual := env.newRitual(t, models.RitualRetro)
		first := env.addCard(t, ritual.ID, "Too many meetings", models.CategoryBad)
		second := env.addCard(t, ritual.ID, "Meetings run long", models.CategoryBad)
		source := env.addCard(t, ritual.ID, "Too many standups", models.CategoryBad)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, target := range []string{first.ID, second.ID} {
			wg.Add(1)
			go func(i int, target string) {
				defer wg.Done()
				_, errs[i] = env.Engine.MergeCards(env.Ctx, target, source.ID)
			}(i, target)
		}
		wg.Wait()

		var wins, notFound int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case retro.IsNotFound(err):
				notFound++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, notFound)

		cards, err := env.Repo.ListCardsForRitual(env.Ctx, ritual.ID)
		require.NoError(t, err)
		grouped := 0
		for _, c := range cards {
			grouped += len(c.GroupedCards)
		}
		assert.Len(t, cards, 2)
		assert.Equal(t, 1, grouped)
	})
}

func TestStepGuards(t *testing.T) {
	env := newTestEnv(t, retro.Policy{EnforceStepGuards: true})
	ritual := env.newRitual(t, models.RitualRetro)
	a := env.addCard(t, ritual.ID, "Too many meetings", models.CategoryBad)
	b := env.addCard(t, ritual.ID, "Too many standups", models.CategoryBad)

	_, err := env.Engine.ToggleVote(env.Ctx, a.ID, "ada")
	assert.True(t, retro.IsValidation(err), "vote during input: %v", err)
	_, err = env.Engine.MergeCards(env.Ctx, a.ID, b.ID)
	assert.True(t, retro.IsValidation(err), "merge during input: %v", err)

	_, err = env.Engine.AdvanceStep(env.Ctx, ritual.ID, "group")
	require.NoError(t, err)
	_, err = env.Engine.AddCard(env.Ctx, ritual.ID, "Late idea", "good", "ada")
	assert.True(t, retro.IsValidation(err), "add during group: %v", err)
	_, err = env.Engine.MergeCards(env.Ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = env.Engine.AdvanceStep(env.Ctx, ritual.ID, "vote")
	require.NoError(t, err)
	voted, err := env.Engine.ToggleVote(env.Ctx, a.ID, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, voted.Votes.Len())
}

func TestDeleteCard(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	ritual := env.newRitual(t, models.RitualRetro)
	card := env.addCard(t, ritual.ID, "Great demo", models.CategoryGood)

	require.NoError(t, env.Engine.DeleteCard(env.Ctx, card.ID))
	err := env.Engine.DeleteCard(env.Ctx, card.ID)
	assert.True(t, retro.IsNotFound(err), "got %v", err)
	assert.Contains(t, env.Events.types(), events.CardDeleted)
}

func TestPromoteCard(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	sink := &recordingActions{}
	env.Engine.Actions = []retro.ActionCreator{env.Repo, sink}
	ritual := env.newRitual(t, models.RitualRetro)
	card := env.addCard(t, ritual.ID, "Too many meetings", models.CategoryBad)

	t.Run("creates a linked action in every tracker", func(t *testing.T) {
		action, err := env.Engine.PromoteCard(env.Ctx, retro.PromoteOptions{
			CardID: card.ID, Assignee: "grace", CreatedBy: "ada",
		})
		require.NoError(t, err)
		assert.Equal(t, "Too many meetings", action.Title)
		assert.Equal(t, models.ActionTodo, action.Status)
		assert.Equal(t, ritual.ID, action.RitualID)
		assert.Equal(t, card.ID, action.SourceCardID)

		stored, err := env.Repo.ListActions(env.Ctx, ritual.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "grace", stored[0].Assignee)
		require.Len(t, sink.actions, 1)
		assert.Equal(t, stored[0].ID, sink.actions[0].ID)
	})

	t.Run("tracker failure leaves the card untouched", func(t *testing.T) {
		sink.err = errors.New("tracker down")
		defer func() { sink.err = nil }()

		_, err := env.Engine.PromoteCard(env.Ctx, retro.PromoteOptions{
			CardID: card.ID, Title: "Cap meetings at 30 minutes", CreatedBy: "ada",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracker down")

		stored, err := env.Repo.GetCard(env.Ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, card.Content, stored.Content)
		assert.Equal(t, 0, stored.Votes.Len())
	})

	t.Run("missing card", func(t *testing.T) {
		_, err := env.Engine.PrepareAction(env.Ctx, retro.PromoteOptions{CardID: "missing", CreatedBy: "ada"})
		assert.True(t, retro.IsNotFound(err), "got %v", err)
	})

	t.Run("missing author", func(t *testing.T) {
		_, err := env.Engine.PrepareAction(env.Ctx, retro.PromoteOptions{CardID: card.ID})
		assert.True(t, retro.IsValidation(err), "got %v", err)
	})
}

// Full board lifecycle: input, group, vote, completed.
func TestRetroLifecycle(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	ritual := env.newRitual(t, models.RitualRetro)
	require.Equal(t, models.StepInput, ritual.RetroStep)

	meetings := env.addCard(t, ritual.ID, "Too many meetings", models.CategoryBad)
	demo := env.addCard(t, ritual.ID, "Great demo", models.CategoryGood)
	standups := env.addCard(t, ritual.ID, "Too many standups", models.CategoryBad)

	_, err := env.Engine.AdvanceStep(env.Ctx, ritual.ID, "group")
	require.NoError(t, err)
	_, err = env.Engine.MergeCards(env.Ctx, meetings.ID, standups.ID)
	require.NoError(t, err)

	_, err = env.Engine.AdvanceStep(env.Ctx, ritual.ID, "vote")
	require.NoError(t, err)
	_, err = env.Engine.ToggleVote(env.Ctx, meetings.ID, "ada")
	require.NoError(t, err)
	_, err = env.Engine.ToggleVote(env.Ctx, meetings.ID, "grace")
	require.NoError(t, err)

	_, err = env.Engine.AdvanceStep(env.Ctx, ritual.ID, "completed")
	require.NoError(t, err)

	results, err := env.Engine.Results(env.Ctx, ritual.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, meetings.ID, results[0].ID)
	assert.Equal(t, 2, results[0].Votes.Len())
	assert.Len(t, results[0].GroupedCards, 1)
	assert.Equal(t, demo.ID, results[1].ID)

	assert.Equal(t, []string{
		events.CardAdded, events.CardAdded, events.CardAdded,
		events.StepChanged, events.CardMerged,
		events.StepChanged, events.CardVoted, events.CardVoted,
		events.StepChanged,
	}, env.Events.types())
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	env := newTestEnv(t, retro.Policy{})
	env.Events.err = errors.New("redis down")
	ritual := env.newRitual(t, models.RitualRetro)

	_, err := env.Engine.AddCard(env.Ctx, ritual.ID, "Still works", "good", "ada")
	assert.NoError(t, err)
}

type brokenStore struct {
	database.Store
	err error
}

func (s brokenStore) Atomic(_ context.Context, fn func(tx database.Store) error) error {
	return fn(s)
}

func (s brokenStore) GetRitual(context.Context, string) (models.Ritual, error) {
	return models.Ritual{}, s.err
}

func (s brokenStore) GetCard(context.Context, string) (models.RetroCard, error) {
	return models.RetroCard{}, s.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	cause := errors.New("disk I/O error")
	eng := retro.New(brokenStore{err: cause}, retro.Policy{})

	_, err := eng.AddCard(context.Background(), "r-1", "Idea", "good", "ada")
	var storeErr *retro.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "add card", storeErr.Op)

	_, err = eng.MergeCards(context.Background(), "a", "b")
	require.ErrorAs(t, err, &storeErr)
	assert.EqualError(t, err, "merge failed: disk I/O error")
}
