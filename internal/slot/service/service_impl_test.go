package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	jobrepo "github.com/tradecore/leadengine/internal/job/repository"
	slotdomain "github.com/tradecore/leadengine/internal/slot/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *snowflake.Node, slotdomain.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobdomain.Job{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:      db,
		Log:     zaptest.NewLogger(t),
		JobRepo: jobrepo.Provide(),
	})
	return db, node, svc
}

func seedJob(t *testing.T, db *gorm.DB, node *snowflake.Node, maxContractors int, locked bool) *jobdomain.Job {
	t.Helper()
	job := &jobdomain.Job{
		ID:             node.Generate(),
		Title:          "Fit kitchen",
		JobSize:        jobdomain.JobSizeMedium,
		MaxContractors: maxContractors,
		Status:         jobdomain.JobStatusOpen,
		Locked:         locked,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func counter(t *testing.T, db *gorm.DB, jobID snowflake.ID) int {
	t.Helper()
	var job jobdomain.Job
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	return job.ContractorsWithAccess
}

func TestReserve_CapEnforced(t *testing.T) {
	db, node, svc := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, db, node, 3, false)

	reserved := 0
	for i := 0; i < 5; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.ReserveTx(ctx, tx, job.ID)
		})
		if err == nil {
			reserved++
			continue
		}
		var full *slotdomain.SlotsFullError
		require.ErrorAs(t, err, &full)
		assert.Equal(t, 3, full.MaxContractors)
	}

	assert.Equal(t, 3, reserved)
	assert.Equal(t, 3, counter(t, db, job.ID))
}

func TestReserve_ConcurrentFanout(t *testing.T) {
	db, node, svc := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, db, node, 5, false)

	// One pooled connection keeps sqlite's single writer happy; the
	// goroutines still race through the service and the guard UPDATE
	// decides the winners.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- db.Transaction(func(tx *gorm.DB) error {
				return svc.ReserveTx(ctx, tx, job.ID)
			})
		}()
	}
	wg.Wait()
	close(results)

	reserved := 0
	for err := range results {
		if err == nil {
			reserved++
			continue
		}
		var full *slotdomain.SlotsFullError
		require.ErrorAs(t, err, &full)
	}
	assert.Equal(t, 5, reserved)
	assert.Equal(t, 5, counter(t, db, job.ID))
}

func TestReserve_LockedAndMissing(t *testing.T) {
	db, node, svc := newTestService(t)
	ctx := context.Background()
	locked := seedJob(t, db, node, 3, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ReserveTx(ctx, tx, locked.ID)
	})
	assert.ErrorIs(t, err, slotdomain.ErrJobLocked)
	assert.Equal(t, 0, counter(t, db, locked.ID))

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.ReserveTx(ctx, tx, node.Generate())
	})
	assert.ErrorIs(t, err, slotdomain.ErrJobNotFound)
}

func TestRelease_FlooredAtZero(t *testing.T) {
	db, node, svc := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, db, node, 3, false)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.ReserveTx(ctx, tx, job.ID)
	}))
	require.NoError(t, svc.Release(ctx, job.ID))
	assert.Equal(t, 0, counter(t, db, job.ID))

	// Duplicate compensation must not underflow.
	require.NoError(t, svc.Release(ctx, job.ID))
	assert.Equal(t, 0, counter(t, db, job.ID))
}

func TestSetLimit(t *testing.T) {
	db, node, svc := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, db, node, 5, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.ReserveTx(ctx, tx, job.ID)
		}))
	}

	require.NoError(t, svc.SetLimit(ctx, job.ID, 3))

	// Shrinking below the granted count would strand existing grants.
	assert.ErrorIs(t, svc.SetLimit(ctx, job.ID, 2), slotdomain.ErrInvalidLimit)
	assert.ErrorIs(t, svc.SetLimit(ctx, job.ID, 0), slotdomain.ErrInvalidLimit)
	assert.ErrorIs(t, svc.SetLimit(ctx, node.Generate(), 4), slotdomain.ErrJobNotFound)

	require.NoError(t, svc.SetLimit(ctx, job.ID, 10))
	var after jobdomain.Job
	require.NoError(t, db.First(&after, "id = ?", job.ID).Error)
	assert.Equal(t, 10, after.MaxContractors)
}
