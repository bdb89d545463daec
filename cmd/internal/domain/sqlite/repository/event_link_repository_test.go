package repository

import (
	"testing"

	"dealintake/cmd/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLinks(t *testing.T, repo *DefaultEventLinkRepository) {
	t.Helper()
	err := repo.ReplaceAll([]*entity.EventLink{
		{FormType: entity.FormTypeLOI, Host: "alice", EventID: "ev1", UpdatedAt: 1},
		{FormType: entity.FormTypeLOI, Host: "alice", EventID: "ev2", UpdatedAt: 1},
		{FormType: entity.FormTypeCIM, Host: "bob", EventID: "ev3", UpdatedAt: 1},
	})
	require.NoError(t, err)
}

func TestFindEventIDs_ScopedToFormTypeAndHost(t *testing.T) {
	repo := NewEventLinkRepository(setupTestDB(t))
	seedLinks(t, repo)

	ids, err := repo.FindEventIDs(entity.FormTypeLOI, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ev1", "ev2"}, ids)

	ids, err = repo.FindEventIDs(entity.FormTypeCIM, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReplaceAll_SwapsIndex(t *testing.T) {
	repo := NewEventLinkRepository(setupTestDB(t))
	seedLinks(t, repo)

	err := repo.ReplaceAll([]*entity.EventLink{
		{FormType: entity.FormTypeCIM, Host: "carol", EventID: "ev9", UpdatedAt: 2},
	})
	require.NoError(t, err)

	links, err := repo.FindAll()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "ev9", links[0].EventID)
}

func TestReplaceAll_EmptyClearsIndex(t *testing.T) {
	repo := NewEventLinkRepository(setupTestDB(t))
	seedLinks(t, repo)

	require.NoError(t, repo.ReplaceAll(nil))

	links, err := repo.FindAll()
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestDeleteByEventID(t *testing.T) {
	repo := NewEventLinkRepository(setupTestDB(t))
	seedLinks(t, repo)

	require.NoError(t, repo.DeleteByEventID("ev2"))

	ids, err := repo.FindEventIDs(entity.FormTypeLOI, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ev1"}, ids)
}
