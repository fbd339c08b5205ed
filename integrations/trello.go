package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/chxlky/squadbooster/internal/models"
	"go.uber.org/zap"
)

const defaultTrelloBaseURL = "https://api.trello.com"

// TrelloClient exports promoted retro actions as cards on a Trello list.
type TrelloClient struct {
	Client   *http.Client
	BaseURL  string
	APIKey   string
	APIToken string
	ListID   string
	Attempts uint
	Delay    time.Duration
}

func NewTrelloClient(key, token, listID string) *TrelloClient {
	return &TrelloClient{
		Client:   &http.Client{Timeout: 10 * time.Second},
		BaseURL:  defaultTrelloBaseURL,
		APIKey:   key,
		APIToken: token,
		ListID:   listID,
		Attempts: 3,
		Delay:    500 * time.Millisecond,
	}
}

// statusError is a non-2xx response from Trello.
type statusError struct {
	Status string
	Code   int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("trello API returned non-200 status: %s, body: %s", e.Status, e.Body)
}

func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// CreateAction creates a Trello card for the action. Rate limits and
// server errors are retried.
func (tc *TrelloClient) CreateAction(ctx context.Context, action *models.Action) error {
	var card models.TrelloCard
	err := retry.Do(
		func() error {
			var err error
			card, err = tc.createCard(ctx, action)
			return err
		},
		retry.Attempts(tc.Attempts),
		retry.Delay(tc.Delay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to export action to Trello: %w", err)
	}

	zap.L().Info("Exported action to Trello",
		zap.String("actionID", action.ID), zap.String("cardID", card.ID), zap.String("url", card.ShortURL))
	return nil
}

func (tc *TrelloClient) createCard(ctx context.Context, action *models.Action) (models.TrelloCard, error) {
	var card models.TrelloCard
	apiURL := strings.TrimRight(tc.BaseURL, "/") + "/1/cards"

	formData := url.Values{}
	formData.Set("key", tc.APIKey)
	formData.Set("token", tc.APIToken)
	formData.Set("idList", tc.ListID)
	formData.Set("name", action.Title)
	formData.Set("desc", describeAction(action))
	if action.DueDate != nil {
		formData.Set("due", action.DueDate.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBufferString(formData.Encode()))
	if err != nil {
		return card, retry.Unrecoverable(fmt.Errorf("failed to create post request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.Client.Do(req)
	if err != nil {
		return card, fmt.Errorf("failed to send post request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return card, &statusError{Status: resp.Status, Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return card, retry.Unrecoverable(fmt.Errorf("failed to decode Trello response: %w", err))
	}
	return card, nil
}

func describeAction(action *models.Action) string {
	var b strings.Builder
	if action.Description != "" {
		b.WriteString(action.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Created by %s from a SquadBooster retro", action.CreatedBy)
	if action.RitualID != "" {
		fmt.Fprintf(&b, " (ritual %s", action.RitualID)
		if action.SourceCardID != "" {
			fmt.Fprintf(&b, ", card %s", action.SourceCardID)
		}
		b.WriteString(")")
	}
	if action.Assignee != "" {
		fmt.Fprintf(&b, "\nAssignee: %s", action.Assignee)
	}
	return b.String()
}
