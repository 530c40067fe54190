package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	accessrepo "github.com/tradecore/leadengine/internal/access/repository"
	auditdomain "github.com/tradecore/leadengine/internal/audit/domain"
	auditrepo "github.com/tradecore/leadengine/internal/audit/repository"
	auditservice "github.com/tradecore/leadengine/internal/audit/service"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	contractorrepo "github.com/tradecore/leadengine/internal/contractor/repository"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	creditrepo "github.com/tradecore/leadengine/internal/credit/repository"
	creditservice "github.com/tradecore/leadengine/internal/credit/service"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	jobrepo "github.com/tradecore/leadengine/internal/job/repository"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	settlement settlementdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&contractordomain.Contractor{},
		&jobdomain.Job{},
		&accessdomain.AccessGrant{},
		&creditdomain.CreditTransaction{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(4)
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

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  auditrepo.Provide(),
	})

	settlement := NewService(Params{
		Config:     config.Config{CommissionRatePercent: 5},
		DB:         db,
		Log:        log,
		Clock:      fake,
		JobRepo:    jobrepo.Provide(),
		AccessRepo: accessrepo.Provide(),
		Credits:    credits,
		Audit:      audit,
	})

	return &testEnv{db: db, node: node, clock: fake, settlement: settlement}
}

func (e *testEnv) seedContractor(t *testing.T, balance int64) *contractordomain.Contractor {
	t.Helper()
	contractor := &contractordomain.Contractor{
		ID:              e.node.Generate(),
		DisplayName:     "Oak Joinery",
		CreditsBalance:  balance,
		LastCreditReset: e.clock.Now(),
	}
	require.NoError(t, e.db.Create(contractor).Error)
	return contractor
}

func (e *testEnv) seedJob(t *testing.T, mutate func(*jobdomain.Job)) *jobdomain.Job {
	t.Helper()
	job := &jobdomain.Job{
		ID:             e.node.Generate(),
		Title:          "Loft conversion",
		JobSize:        jobdomain.JobSizeLarge,
		MaxContractors: 5,
		Status:         jobdomain.JobStatusOpen,
	}
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, e.db.Create(job).Error)
	return job
}

func (e *testEnv) seedGrant(t *testing.T, contractorID, jobID snowflake.ID, method accessdomain.Method) {
	t.Helper()
	require.NoError(t, e.db.Create(&accessdomain.AccessGrant{
		ID:           e.node.Generate(),
		ContractorID: contractorID,
		JobID:        jobID,
		Method:       method,
		PaidAmount:   5000,
		PurchasedAt:  e.clock.Now(),
	}).Error)
}

func (e *testEnv) reloadJob(t *testing.T, id snowflake.ID) jobdomain.Job {
	t.Helper()
	var job jobdomain.Job
	require.NoError(t, e.db.First(&job, "id = ?", id).Error)
	return job
}

func (e *testEnv) balance(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var contractor contractordomain.Contractor
	require.NoError(t, e.db.First(&contractor, "id = ?", id).Error)
	return contractor.CreditsBalance
}

func TestSettle_CreditWinnerPaysCommission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 10)
	job := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.CustomerConfirmed = true
		j.WonByContractorID = &winner.ID
	})
	env.seedGrant(t, winner.ID, job.ID, accessdomain.MethodCredit)

	settled, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{
		JobID:       job.ID,
		FinalAmount: 100000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), settled.Commission)
	assert.False(t, settled.Exempt)

	after := env.reloadJob(t, job.ID)
	assert.True(t, after.CommissionPaid)
	require.NotNil(t, after.FinalAmount)
	assert.Equal(t, int64(100000), *after.FinalAmount)

	// Commission is booked as a negative deduction against the ledger.
	assert.Equal(t, int64(10-5000), env.balance(t, winner.ID))

	var txn creditdomain.CreditTransaction
	require.NoError(t, env.db.First(&txn, "contractor_id = ?", winner.ID).Error)
	assert.Equal(t, creditdomain.TransactionTypeDeduction, txn.Type)
	assert.Equal(t, int64(-5000), txn.Amount)
}

func TestSettle_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 0)
	job := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.CustomerConfirmed = true
		j.WonByContractorID = &winner.ID
	})
	env.seedGrant(t, winner.ID, job.ID, accessdomain.MethodStripe)

	_, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: job.ID, FinalAmount: 40000})
	require.NoError(t, err)

	_, err = env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: job.ID, FinalAmount: 40000})
	assert.ErrorIs(t, err, settlementdomain.ErrAlreadySettled)

	// Charged exactly once.
	assert.Equal(t, int64(-2000), env.balance(t, winner.ID))
}

func TestSettle_SubscriberExempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 3)
	job := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.CustomerConfirmed = true
		j.WonByContractorID = &winner.ID
	})
	env.seedGrant(t, winner.ID, job.ID, accessdomain.MethodStripeSubscriber)

	settled, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: job.ID, FinalAmount: 80000})
	require.NoError(t, err)
	assert.True(t, settled.Exempt)
	assert.Equal(t, int64(0), settled.Commission)
	assert.Equal(t, int64(3), env.balance(t, winner.ID))
	assert.True(t, env.reloadJob(t, job.ID).CommissionPaid)
}

func TestSettle_Gates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 3)

	open := env.seedJob(t, func(j *jobdomain.Job) {
		j.WonByContractorID = &winner.ID
	})
	_, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: open.ID, FinalAmount: 1000})
	assert.ErrorIs(t, err, settlementdomain.ErrJobNotCompleted)

	unconfirmed := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.WonByContractorID = &winner.ID
	})
	_, err = env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: unconfirmed.ID, FinalAmount: 1000})
	assert.ErrorIs(t, err, settlementdomain.ErrNotConfirmed)

	noWinner := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.CustomerConfirmed = true
	})
	_, err = env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: noWinner.ID, FinalAmount: 1000})
	assert.ErrorIs(t, err, settlementdomain.ErrNoWinner)

	_, err = env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: env.node.Generate(), FinalAmount: 1000})
	assert.ErrorIs(t, err, settlementdomain.ErrJobNotFound)

	_, err = env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: open.ID, FinalAmount: 0})
	assert.ErrorIs(t, err, settlementdomain.ErrInvalidAmount)
}

func TestSettle_ForceSkipsGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 3)
	job := env.seedJob(t, func(j *jobdomain.Job) {
		j.WonByContractorID = &winner.ID
	})
	env.seedGrant(t, winner.ID, job.ID, accessdomain.MethodCredit)

	settled, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{
		JobID:       job.ID,
		FinalAmount: 20000,
		Reason:      "dispute resolved offline",
		Force:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), settled.Commission)
	assert.Equal(t, jobdomain.JobStatusCompleted, env.reloadJob(t, job.ID).Status)
}

func TestSettle_NoGrantIsExempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 0)
	job := env.seedJob(t, func(j *jobdomain.Job) {
		j.Status = jobdomain.JobStatusCompleted
		j.CustomerConfirmed = true
		j.WonByContractorID = &winner.ID
	})

	settled, err := env.settlement.Settle(ctx, settlementdomain.SettleRequest{JobID: job.ID, FinalAmount: 50000})
	require.NoError(t, err)
	assert.True(t, settled.Exempt)
	assert.Equal(t, int64(0), env.balance(t, winner.ID))
}

func TestMarkCompleted_SettlesWhenConfirmed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 5)
	confirmed := env.seedJob(t, func(j *jobdomain.Job) {
		j.CustomerConfirmed = true
	})
	env.seedGrant(t, winner.ID, confirmed.ID, accessdomain.MethodCredit)

	require.NoError(t, env.settlement.MarkCompleted(ctx, confirmed.ID, winner.ID, 60000, "homeowner accepted quote"))

	after := env.reloadJob(t, confirmed.ID)
	assert.Equal(t, jobdomain.JobStatusCompleted, after.Status)
	assert.True(t, after.CommissionPaid)
	assert.Equal(t, int64(5-3000), env.balance(t, winner.ID))

	// The caller's reason lands on the commission deduction.
	var txn creditdomain.CreditTransaction
	require.NoError(t, env.db.First(&txn, "contractor_id = ? AND type = ?",
		winner.ID, creditdomain.TransactionTypeDeduction).Error)
	assert.Equal(t, "homeowner accepted quote", txn.Reason)

	// Without confirmation the job completes but stays unsettled.
	pending := env.seedJob(t, nil)
	require.NoError(t, env.settlement.MarkCompleted(ctx, pending.ID, winner.ID, 60000, ""))
	assert.False(t, env.reloadJob(t, pending.ID).CommissionPaid)
}

func TestConfirmByCustomer_TriggersSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner := env.seedContractor(t, 5)
	job := env.seedJob(t, nil)
	env.seedGrant(t, winner.ID, job.ID, accessdomain.MethodCredit)

	require.NoError(t, env.settlement.MarkCompleted(ctx, job.ID, winner.ID, 30000, ""))
	assert.False(t, env.reloadJob(t, job.ID).CommissionPaid)

	require.NoError(t, env.settlement.ConfirmByCustomer(ctx, job.ID))

	after := env.reloadJob(t, job.ID)
	assert.True(t, after.CustomerConfirmed)
	assert.True(t, after.CommissionPaid)
	assert.Equal(t, int64(5-1500), env.balance(t, winner.ID))
}
