package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straymap/straymap-server/internal/handlers"
	"github.com/straymap/straymap-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMessageRouter(messages handlers.MessageStore, notifier handlers.Notifier) *chi.Mux {
	h := handlers.NewMessageHandler(messages, notifier, zap.NewNop().Sugar())
	r := chi.NewRouter()
	r.Post("/messages", h.Submit)
	return r
}

func TestSubmitMessage(t *testing.T) {
	messages := new(MockMessageStore)
	notifier := new(MockNotifier)
	router := newMessageRouter(messages, notifier)

	stored := &models.Message{
		ID:        uuid.New(),
		Category:  "happy_story",
		Name:      "Ayşe",
		Body:      "the kitten found a home",
		CreatedAt: time.Now().UTC(),
	}
	messages.On("Create", mock.MatchedBy(func(req models.NewMessage) bool {
		return req.Category == "happy_story" && req.Message == "the kitten found a home"
	})).Return(stored, nil).Once()
	notifier.On("NotifyAsync", mock.MatchedBy(func(n models.Notification) bool {
		return n.Category == "happy_story" && n.Message == "the kitten found a home"
	})).Once()

	rec := doJSON(t, router, http.MethodPost, "/messages", models.NewMessage{
		Category: "happy_story",
		Name:     "Ayşe",
		Message:  "the kitten found a home",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, stored.ID.String(), body["id"])
	messages.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSubmitMessageHoneypotDropsSilently(t *testing.T) {
	messages := new(MockMessageStore)
	notifier := new(MockNotifier)
	router := newMessageRouter(messages, notifier)

	rec := doJSON(t, router, http.MethodPost, "/messages", models.NewMessage{
		Category: "contact",
		Message:  "buy cheap watches",
		Honeypot: "filled by a bot",
	})

	// The bot sees success; nothing is stored or delivered.
	assert.Equal(t, http.StatusAccepted, rec.Code)
	messages.AssertNotCalled(t, "Create", mock.Anything)
	notifier.AssertNotCalled(t, "NotifyAsync", mock.Anything)
}

func TestSubmitMessageEmptyRejected(t *testing.T) {
	messages := new(MockMessageStore)
	notifier := new(MockNotifier)
	router := newMessageRouter(messages, notifier)

	rec := doJSON(t, router, http.MethodPost, "/messages", models.NewMessage{
		Category: "contact",
		Message:  "   ",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	messages.AssertNotCalled(t, "Create", mock.Anything)
}

func TestSubmitMessageStoreFailureSkipsNotification(t *testing.T) {
	messages := new(MockMessageStore)
	notifier := new(MockNotifier)
	router := newMessageRouter(messages, notifier)

	messages.On("Create", mock.Anything).Return(nil, errors.New("db down")).Once()

	rec := doJSON(t, router, http.MethodPost, "/messages", models.NewMessage{
		Category: "contact",
		Message:  "hello",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	notifier.AssertNotCalled(t, "NotifyAsync", mock.Anything)
}
