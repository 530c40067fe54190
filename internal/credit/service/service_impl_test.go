package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/tradecore/leadengine/internal/clock"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	contractorrepo "github.com/tradecore/leadengine/internal/contractor/repository"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	creditrepo "github.com/tradecore/leadengine/internal/credit/repository"
	"github.com/tradecore/leadengine/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	credits creditdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&contractordomain.Contractor{},
		&creditdomain.CreditTransaction{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	credits := NewService(Params{
		DB:             db,
		Log:            zaptest.NewLogger(t),
		GenID:          node,
		Clock:          fake,
		Repo:           creditrepo.Provide(),
		ContractorRepo: contractorrepo.Provide(),
	})

	return &testEnv{db: db, node: node, clock: fake, credits: credits}
}

func (e *testEnv) seedContractor(t *testing.T, mutate func(*contractordomain.Contractor)) *contractordomain.Contractor {
	t.Helper()
	contractor := &contractordomain.Contractor{
		ID:                 e.node.Generate(),
		DisplayName:        "Brick & Sons",
		WeeklyCreditsLimit: 5,
		LastCreditReset:    e.clock.Now(),
		CreatedAt:          e.clock.Now(),
		UpdatedAt:          e.clock.Now(),
	}
	if mutate != nil {
		mutate(contractor)
	}
	require.NoError(t, e.db.Create(contractor).Error)
	return contractor
}

func (e *testEnv) seedSubscriber(t *testing.T, balance int64) *contractordomain.Contractor {
	return e.seedContractor(t, func(c *contractordomain.Contractor) {
		c.CreditsBalance = balance
		c.SubscriptionActive = true
		c.SubscriptionStatus = contractordomain.SubscriptionStatusActive
	})
}

func (e *testEnv) reload(t *testing.T, id snowflake.ID) contractordomain.Contractor {
	t.Helper()
	var contractor contractordomain.Contractor
	require.NoError(t, e.db.First(&contractor, "id = ?", id).Error)
	return contractor
}

func TestDebit_Subscriber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 3)

	txn, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeSubscriber,
		Reason:       "lead access for job 42",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), txn.Amount)
	assert.Equal(t, creditdomain.TransactionTypeDeduction, txn.Type)
	assert.Equal(t, int64(2), env.reload(t, contractor.ID).CreditsBalance)
}

func TestDebit_ConcurrentFanout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 5)

	// One pooled connection keeps sqlite's single writer happy; the
	// compare-and-decrement guard still decides who spends.
	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const attempts = 12
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
				ContractorID: contractor.ID,
				Mode:         creditdomain.DebitModeSubscriber,
				Reason:       "lead access for job 42",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	spent := 0
	for err := range results {
		if err == nil {
			spent++
			continue
		}
		require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)
	}
	assert.Equal(t, 5, spent)
	assert.Equal(t, int64(0), env.reload(t, contractor.ID).CreditsBalance)

	var txns int64
	require.NoError(t, env.db.Model(&creditdomain.CreditTransaction{}).
		Where("contractor_id = ?", contractor.ID).Count(&txns).Error)
	assert.Equal(t, int64(5), txns)
}

func TestDebit_InsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 0)

	_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeSubscriber,
		Reason:       "lead access for job 42",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	var insufficient *creditdomain.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(0), insufficient.Balance)
}

func TestDebit_LapsedSubscriptionRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Balance left over from an active period must not be spendable once
	// the subscription lapses.
	contractor := env.seedContractor(t, func(c *contractordomain.Contractor) {
		c.CreditsBalance = 4
		c.SubscriptionStatus = contractordomain.SubscriptionStatusCanceled
	})

	_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeSubscriber,
		Reason:       "lead access for job 42",
	})
	assert.ErrorIs(t, err, creditdomain.ErrNotEligible)
	assert.Equal(t, int64(4), env.reload(t, contractor.ID).CreditsBalance)
}

func TestDebit_TrialSpentOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedContractor(t, func(c *contractordomain.Contractor) {
		c.CreditsBalance = 2
		c.TrialCreditGranted = true
	})

	_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeTrial,
		Reason:       "lead access for job 7",
	})
	require.NoError(t, err)

	after := env.reload(t, contractor.ID)
	assert.True(t, after.TrialCreditUsed)
	assert.Equal(t, int64(1), after.CreditsBalance)

	_, err = env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeTrial,
		Reason:       "lead access for job 8",
	})
	assert.ErrorIs(t, err, creditdomain.ErrNotEligible)
}

func TestDebit_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 3)

	_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Mode:         creditdomain.DebitModeSubscriber,
	})
	assert.ErrorIs(t, err, creditdomain.ErrReasonRequired)

	_, err = env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: contractor.ID,
		Amount:       -2,
		Mode:         creditdomain.DebitModeSubscriber,
		Reason:       "negative",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)

	_, err = env.credits.Debit(ctx, creditdomain.DebitRequest{
		ContractorID: env.node.Generate(),
		Mode:         creditdomain.DebitModeSubscriber,
		Reason:       "ghost",
	})
	assert.ErrorIs(t, err, creditdomain.ErrContractorNotFound)
}

func TestCredit_SignedAmounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 2)

	admin := "admin-17"
	txn, err := env.credits.Credit(ctx, creditdomain.CreditRequest{
		ContractorID: contractor.ID,
		Amount:       3,
		Type:         creditdomain.TransactionTypeBonus,
		Reason:       "goodwill bonus",
		AdminUserID:  &admin,
	})
	require.NoError(t, err)
	assert.Equal(t, creditdomain.TransactionTypeBonus, txn.Type)
	require.NotNil(t, txn.AdminUserID)
	assert.Equal(t, "admin-17", *txn.AdminUserID)
	assert.Equal(t, int64(5), env.reload(t, contractor.ID).CreditsBalance)

	// A negative adjustment is recorded as debt; only Debit enforces the
	// zero floor.
	_, err = env.credits.Credit(ctx, creditdomain.CreditRequest{
		ContractorID: contractor.ID,
		Amount:       -8,
		Type:         creditdomain.TransactionTypeDeduction,
		Reason:       "commission on completed job",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), env.reload(t, contractor.ID).CreditsBalance)

	_, err = env.credits.Credit(ctx, creditdomain.CreditRequest{
		ContractorID: contractor.ID,
		Amount:       0,
		Reason:       "noop",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
}

func TestBalance_UnknownContractor(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.credits.Balance(context.Background(), env.node.Generate())
	assert.ErrorIs(t, err, creditdomain.ErrContractorNotFound)
}

func TestHistory_CursorPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contractor := env.seedSubscriber(t, 10)

	for i := 0; i < 5; i++ {
		_, err := env.credits.Debit(ctx, creditdomain.DebitRequest{
			ContractorID: contractor.ID,
			Mode:         creditdomain.DebitModeSubscriber,
			Reason:       fmt.Sprintf("lead access for job %d", i),
		})
		require.NoError(t, err)
	}

	first, err := env.credits.History(ctx, creditdomain.HistoryRequest{
		ContractorID: contractor.ID,
		Pagination:   pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	// Newest first.
	assert.True(t, first.Transactions[0].ID > first.Transactions[1].ID)

	second, err := env.credits.History(ctx, creditdomain.HistoryRequest{
		ContractorID: contractor.ID,
		Pagination:   pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 2)
	assert.True(t, second.Transactions[0].ID < first.Transactions[1].ID)

	third, err := env.credits.History(ctx, creditdomain.HistoryRequest{
		ContractorID: contractor.ID,
		Pagination:   pagination.Pagination{PageSize: 2, PageToken: second.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, third.Transactions, 1)
	assert.False(t, third.HasMore)
	assert.Empty(t, third.NextPageToken)
}

func TestWeeklyReset_TopUpToCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	spent := env.seedSubscriber(t, 2)
	atCeiling := env.seedSubscriber(t, 5)
	recent := env.seedSubscriber(t, 1)

	env.clock.Advance(8 * 24 * time.Hour)
	now := env.clock.Now()
	require.NoError(t, env.db.Model(&contractordomain.Contractor{}).
		Where("id = ?", recent.ID).
		Update("last_credit_reset", now.Add(-2*24*time.Hour)).Error)

	summary, err := env.credits.WeeklyReset(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.ToppedUp)

	assert.Equal(t, int64(5), env.reload(t, spent.ID).CreditsBalance)
	assert.Equal(t, int64(5), env.reload(t, atCeiling.ID).CreditsBalance)
	assert.Equal(t, int64(1), env.reload(t, recent.ID).CreditsBalance)

	// Top-up is recorded as the delta, not the ceiling.
	var txn creditdomain.CreditTransaction
	require.NoError(t, env.db.First(&txn, "contractor_id = ?", spent.ID).Error)
	assert.Equal(t, creditdomain.TransactionTypeWeeklyAllocation, txn.Type)
	assert.Equal(t, int64(3), txn.Amount)

	var count int64
	require.NoError(t, env.db.Model(&creditdomain.CreditTransaction{}).
		Where("contractor_id = ?", atCeiling.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// An immediate second sweep finds nothing due.
	summary, err = env.credits.WeeklyReset(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestWeeklyReset_TrialGrantedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fresh := env.seedContractor(t, nil)
	alreadyGranted := env.seedContractor(t, func(c *contractordomain.Contractor) {
		c.TrialCreditGranted = true
		c.TrialCreditUsed = true
	})

	env.clock.Advance(8 * 24 * time.Hour)

	summary, err := env.credits.WeeklyReset(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.TrialsGranted)

	after := env.reload(t, fresh.ID)
	assert.True(t, after.TrialCreditGranted)
	assert.False(t, after.TrialCreditUsed)
	assert.Equal(t, int64(1), after.CreditsBalance)

	var txn creditdomain.CreditTransaction
	require.NoError(t, env.db.First(&txn, "contractor_id = ?", fresh.ID).Error)
	assert.Equal(t, creditdomain.TransactionTypeBonus, txn.Type)
	assert.Equal(t, int64(1), txn.Amount)

	// The lifetime trial is never renewed, even after it was spent.
	assert.Equal(t, int64(0), env.reload(t, alreadyGranted.ID).CreditsBalance)

	env.clock.Advance(8 * 24 * time.Hour)
	summary, err = env.credits.WeeklyReset(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.TrialsGranted)
	assert.Equal(t, int64(1), env.reload(t, fresh.ID).CreditsBalance)
}

func TestWeeklyReset_BatchLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.seedSubscriber(t, 0)
	}
	env.clock.Advance(8 * 24 * time.Hour)

	summary, err := env.credits.WeeklyReset(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)

	summary, err = env.credits.WeeklyReset(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}
