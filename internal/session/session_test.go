package session

import (
	"testing"
	"time"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(text string) models.Message {
	return models.Message{Role: models.RoleUser, Content: text}
}

func assistant(text string) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: text}
}

func TestAppendCreatesThenAppends(t *testing.T) {
	s := NewStore()

	id, err := s.Append("", []string{"f1", "f2"}, user("hi"), assistant("hello"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// file ids of an existing session are authoritative
	again, err := s.Append(id, []string{"other"}, user("more"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, []string{"f1", "f2"}, sess.FileIDs)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, "more", sess.Messages[2].Content)
	assert.False(t, sess.Messages[0].Timestamp.IsZero())
}

func TestAppendAdoptsUnknownID(t *testing.T) {
	s := NewStore()
	id, err := s.Append("from-before-restart", []string{"f1"}, user("q"))
	require.NoError(t, err)
	assert.Equal(t, "from-before-restart", id)

	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, []string{"f1"}, sess.FileIDs)
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := NewStore()
	_, err := s.Append("", nil, models.Message{Role: "system", Content: "x"})
	require.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Empty(t, s.List())
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	id, err := s.Append("", []string{"f1"}, user("q"))
	require.NoError(t, err)

	sess, _ := s.Get(id)
	sess.FileIDs[0] = "tampered"
	sess.Messages[0].Content = "tampered"

	fresh, _ := s.Get(id)
	assert.Equal(t, "f1", fresh.FileIDs[0])
	assert.Equal(t, "q", fresh.Messages[0].Content)
}

func TestListAndHistory(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, _ := s.Append("", nil, user("1"), assistant("2"), user("3"))
	second, _ := s.Append("", nil, user("x"))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].SessionID)
	assert.Equal(t, second, list[1].SessionID)

	hist := s.History(first, 2)
	require.Len(t, hist, 2)
	assert.Equal(t, "2", hist[0].Content)
	assert.Equal(t, "3", hist[1].Content)
	assert.Nil(t, s.History("missing", 2))

	_, ok := s.Get("missing")
	assert.False(t, ok)
}
