package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	contractorrepo "github.com/tradecore/leadengine/internal/contractor/repository"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	creditrepo "github.com/tradecore/leadengine/internal/credit/repository"
	creditservice "github.com/tradecore/leadengine/internal/credit/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newScheduler(t *testing.T, batchSize int) (*gorm.DB, *snowflake.Node, *clock.FakeClock, *Scheduler) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractordomain.Contractor{},
		&creditdomain.CreditTransaction{},
	))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	credits := creditservice.NewService(creditservice.Params{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          fake,
		Repo:           creditrepo.Provide(),
		ContractorRepo: contractorrepo.Provide(),
	})

	sched := New(Params{
		Config: config.Config{
			SchedulerIntervalSeconds: 300,
			SchedulerBatchSize:       batchSize,
		},
		Log:     log,
		Clock:   fake,
		Credits: credits,
	})
	return db, node, fake, sched
}

func seedSubscriber(t *testing.T, db *gorm.DB, node *snowflake.Node, now time.Time, balance int64) snowflake.ID {
	t.Helper()
	contractor := &contractordomain.Contractor{
		ID:                 node.Generate(),
		DisplayName:        "Pine Roofing",
		CreditsBalance:     balance,
		WeeklyCreditsLimit: 5,
		LastCreditReset:    now,
		SubscriptionActive: true,
		SubscriptionStatus: contractordomain.SubscriptionStatusActive,
	}
	require.NoError(t, db.Create(contractor).Error)
	return contractor.ID
}

func balanceOf(t *testing.T, db *gorm.DB, id snowflake.ID) int64 {
	t.Helper()
	var contractor contractordomain.Contractor
	require.NoError(t, db.First(&contractor, "id = ?", id).Error)
	return contractor.CreditsBalance
}

func TestRunOnce_SweepsDueContractors(t *testing.T) {
	db, node, fake, sched := newScheduler(t, 100)
	ctx := context.Background()

	seeded := fake.Now()
	ids := make([]snowflake.ID, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, seedSubscriber(t, db, node, seeded, int64(i)))
	}

	// Nothing is due yet.
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, int64(0), balanceOf(t, db, ids[0]))

	fake.Advance(8 * 24 * time.Hour)
	require.NoError(t, sched.RunOnce(ctx))
	for _, id := range ids {
		assert.Equal(t, int64(5), balanceOf(t, db, id))
	}
}

func TestRunOnce_DrainsAcrossBatches(t *testing.T) {
	db, node, fake, sched := newScheduler(t, 2)
	ctx := context.Background()

	seeded := fake.Now()
	ids := make([]snowflake.ID, 0, 7)
	for i := 0; i < 7; i++ {
		ids = append(ids, seedSubscriber(t, db, node, seeded, 0))
	}

	fake.Advance(8 * 24 * time.Hour)

	// One run keeps claiming batches until the backlog is empty.
	require.NoError(t, sched.RunOnce(ctx))
	for _, id := range ids {
		assert.Equal(t, int64(5), balanceOf(t, db, id))
	}
}
