package db

import (
	"context"
	"os"
	"testing"

	"campushub/internal/models"
	"campushub/internal/poll"
	"campushub/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// 需要真实的 postgres：TEST_DATABASE_URL=... go test ./internal/db
func setupStore(t *testing.T) (*MessageStore, models.Forum) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	Init(dsn, false)

	forum := models.Forum{Name: "test-" + uuid.NewString()}
	require.NoError(t, DB.Create(&forum).Error)
	t.Cleanup(func() {
		DB.Where("forum_id = ?", forum.ID).Delete(&models.Message{})
		DB.Delete(&forum)
	})
	return NewMessageStore(DB), forum
}

func newMessage(forumID uuid.UUID, text string) *models.Message {
	return &models.Message{
		ID:      uuid.New(),
		ForumID: forumID,
		UserID:  "tester",
		Type:    models.MessageTypeText,
		Text:    text,
		Replies: datatypes.JSONSlice[string]{},
		Version: 1,
	}
}

func TestStoreThread(t *testing.T) {
	store, forum := setupStore(t)
	ctx := context.Background()

	parent := newMessage(forum.ID, "parent")
	require.NoError(t, store.CreateMessage(ctx, parent))

	child := newMessage(forum.ID, "child")
	child.ParentID = &parent.ID
	require.NoError(t, store.CreateMessage(ctx, child))
	require.NoError(t, store.AttachReply(ctx, parent.ID, child.ID))

	got, err := store.GetMessage(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID.String()}, []string(got.Replies))

	top, total, err := store.ListTopLevel(ctx, forum.ID, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, top, 1)

	counts, err := store.CountReplies(ctx, []uuid.UUID{parent.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[parent.ID])

	removed, err := store.DeleteThread(ctx, parent.ID, nil)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, child.ID, removed[0].ID)
	_, err = store.GetMessage(ctx, child.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, store.AttachReply(ctx, parent.ID, child.ID), services.ErrNotFound)
}

func TestStoreUpdatePollVersionCheck(t *testing.T) {
	store, forum := setupStore(t)
	ctx := context.Background()

	p, err := poll.NewPoll("Colour?", []string{"Red", "Blue"}, models.PollTypeSingle)
	require.NoError(t, err)
	m := newMessage(forum.ID, "")
	m.Type = models.MessageTypePoll
	m.SetPoll(p)
	require.NoError(t, store.CreateMessage(ctx, m))

	first, err := store.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	stale, err := store.GetMessage(ctx, m.ID)
	require.NoError(t, err)

	_, err = poll.ApplyVote(first.PollData(), "u1", 0)
	require.NoError(t, err)
	require.NoError(t, store.UpdatePoll(ctx, first))
	assert.Equal(t, 2, first.Version)

	_, err = poll.ApplyVote(stale.PollData(), "u2", 1)
	require.NoError(t, err)
	assert.ErrorIs(t, store.UpdatePoll(ctx, stale), services.ErrVersionConflict)

	got, err := store.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PollData().TotalVotes)
	assert.Equal(t, 2, got.Version)
}

func TestStoreDeleteThreadKeepsGrandchildren(t *testing.T) {
	store, forum := setupStore(t)
	ctx := context.Background()

	parent := newMessage(forum.ID, "parent")
	require.NoError(t, store.CreateMessage(ctx, parent))
	child := newMessage(forum.ID, "child")
	child.ParentID = &parent.ID
	require.NoError(t, store.CreateMessage(ctx, child))
	grandchild := newMessage(forum.ID, "grandchild")
	grandchild.ParentID = &child.ID
	grandchild.File = datatypes.NewJSONType(&models.Attachment{Name: "g.txt", Path: "2026/01/g.txt"})
	require.NoError(t, store.CreateMessage(ctx, grandchild))

	removed, err := store.DeleteThread(ctx, parent.ID, nil)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, child.ID, removed[0].ID)

	got, err := store.GetMessage(ctx, grandchild.ID)
	require.NoError(t, err, "the foreign key must not cascade past direct replies")
	assert.Nil(t, got.ParentID)
	require.NotNil(t, got.File.Data())
	assert.Equal(t, "g.txt", got.File.Data().Name)

	top, _, err := store.ListTopLevel(ctx, forum.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, grandchild.ID, top[0].ID)

	_, err = store.DeleteThread(ctx, parent.ID, nil)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
