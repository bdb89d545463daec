package repository

import (
	"fmt"
	"sync"
	"testing"

	"dealintake/cmd/internal/domain/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.Init(":memory:")
	require.NoError(t, err)
	return db
}

func TestEnsureOccurrence_CreatesOnce(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	first, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 10, 1699000000000)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Capacity)
	assert.Equal(t, 0, first.GuestCount)

	// A second call with a different default must return the original row.
	second, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 25, 1699000000001)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 10, second.Capacity)
}

func TestEnsureOccurrence_SameIDDifferentStart(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	a, err := repo.EnsureOccurrence("ev1", 1700000000000, 10, 0)
	require.NoError(t, err)
	b, err := repo.EnsureOccurrence("ev1", 1700600000000, 10, 0)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestFindOccurrence_NilWhenMissing(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	occ, err := repo.FindOccurrence("nope", 1700000000000)
	require.NoError(t, err)
	assert.Nil(t, occ)
}

func TestRegister_FillsToCapacityThenRejects(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	occ, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 2, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		outcome, reg, err := repo.Register(occ.ID, "Guest", fmt.Sprintf("guest%d@example.com", i), 1700000000000)
		require.NoError(t, err)
		assert.Equal(t, RegisterCreated, outcome)
		require.NotNil(t, reg)
	}

	outcome, reg, err := repo.Register(occ.ID, "Late Guest", "late@example.com", 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, RegisterFull, outcome)
	assert.Nil(t, reg)

	count, err := repo.CountRegistrations(occ.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	refreshed, err := repo.FindOccurrence("ev1_a", 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.GuestCount)
}

func TestRegister_ConcurrentAttemptsRespectCapacity(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	occ, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 10, 0)
	require.NoError(t, err)

	const attempts = 15
	outcomes := make([]RegisterOutcome, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _, errs[i] = repo.Register(occ.ID, "Guest", fmt.Sprintf("guest%d@example.com", i), 1700000000000)
		}(i)
	}
	wg.Wait()

	created, full := 0, 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case RegisterCreated:
			created++
		case RegisterFull:
			full++
		default:
			t.Fatalf("unexpected outcome %v", outcomes[i])
		}
	}
	assert.Equal(t, 10, created)
	assert.Equal(t, 5, full)

	count, err := repo.CountRegistrations(occ.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestRegister_DuplicateEmailIsIdempotent(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	occ, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 10, 0)
	require.NoError(t, err)

	outcome, first, err := repo.Register(occ.ID, "Jane Doe", "jane@example.com", 1700000000000)
	require.NoError(t, err)
	require.Equal(t, RegisterCreated, outcome)

	outcome, second, err := repo.Register(occ.ID, "Jane D.", "jane@example.com", 1700000000500)
	require.NoError(t, err)
	assert.Equal(t, RegisterDuplicate, outcome)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jane Doe", second.FullName)

	count, err := repo.CountRegistrations(occ.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegister_SameEmailAcrossOccurrences(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	a, err := repo.EnsureOccurrence("ev1", 1700000000000, 10, 0)
	require.NoError(t, err)
	b, err := repo.EnsureOccurrence("ev1", 1700600000000, 10, 0)
	require.NoError(t, err)

	outcome, _, err := repo.Register(a.ID, "Jane Doe", "jane@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, RegisterCreated, outcome)

	outcome, _, err = repo.Register(b.ID, "Jane Doe", "jane@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, RegisterCreated, outcome)
}

func TestFindRegistrations_OrderedByTime(t *testing.T) {
	repo := NewLedgerRepository(setupTestDB(t))

	occ, err := repo.EnsureOccurrence("ev1_a", 1700000000000, 10, 0)
	require.NoError(t, err)

	_, _, err = repo.Register(occ.ID, "Second", "second@example.com", 2000)
	require.NoError(t, err)
	_, _, err = repo.Register(occ.ID, "First", "first@example.com", 1000)
	require.NoError(t, err)

	regs, err := repo.FindRegistrations(occ.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "first@example.com", regs[0].Email)
	assert.Equal(t, "second@example.com", regs[1].Email)
}
