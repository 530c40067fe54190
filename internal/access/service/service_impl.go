package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	auditdomain "github.com/tradecore/leadengine/internal/audit/domain"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	obsmetrics "github.com/tradecore/leadengine/internal/observability/metrics"
	paymentdomain "github.com/tradecore/leadengine/internal/payment/domain"
	"github.com/tradecore/leadengine/internal/pricing"
	slotdomain "github.com/tradecore/leadengine/internal/slot/domain"
	"github.com/tradecore/leadengine/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config         config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           accessdomain.Repository
	JobRepo        jobdomain.Repository
	ContractorRepo contractordomain.Repository
	Credits        creditdomain.Service
	Slots          slotdomain.Service
	Gateway        paymentdomain.Gateway
	Audit          auditdomain.Service
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           accessdomain.Repository
	jobRepo        jobdomain.Repository
	contractorRepo contractordomain.Repository
	credits        creditdomain.Service
	slots          slotdomain.Service
	gateway        paymentdomain.Gateway
	audit          auditdomain.Service
	obsMetrics     *obsmetrics.Metrics
}

func NewService(p Params) accessdomain.Service {
	return &Service{
		cfg:            p.Config,
		db:             p.DB,
		log:            p.Log.Named("access.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		jobRepo:        p.JobRepo,
		contractorRepo: p.ContractorRepo,
		credits:        p.Credits,
		slots:          p.Slots,
		gateway:        p.Gateway,
		audit:          p.Audit,
		obsMetrics:     p.ObsMetrics,
	}
}

// Purchase runs the unlock flow: eligibility preview, provisional slot
// reservation, payment (ledger debit or gateway confirmation), then grant
// creation. The slot is released whenever a later step fails, and the
// unique grant indexes make concurrent retries converge on a single
// grant.
func (s *Service) Purchase(ctx context.Context, req accessdomain.PurchaseRequest) (*accessdomain.AccessGrant, error) {
	contractor, job, svc, err := s.loadParticipants(ctx, req.ContractorID, req.JobID)
	if err != nil {
		return nil, err
	}

	// Repeat purchase of an already-held lead is a no-op.
	existing, err := s.repo.FindByPair(ctx, s.db, req.ContractorID, req.JobID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.obsMetrics.IncPurchase(string(req.Method), "already_granted")
		return existing, nil
	}

	if req.Method == accessdomain.MethodStripe || req.Method == accessdomain.MethodStripeSubscriber {
		if req.PaymentRef == "" {
			return nil, accessdomain.ErrPaymentRefRequired
		}
		// A webhook or redirect retry for an intent that already
		// produced a grant returns that grant.
		byIntent, err := s.repo.FindByPaymentIntent(ctx, s.db, req.PaymentRef)
		if err != nil {
			return nil, err
		}
		if byIntent != nil {
			s.obsMetrics.IncPurchase(string(req.Method), "already_granted")
			return byIntent, nil
		}
	}

	if !accessdomain.MethodEligible(*contractor, *job, req.Method) {
		s.obsMetrics.IncPurchase(string(req.Method), "invalid_method")
		return nil, &accessdomain.InvalidMethodError{
			Method:   req.Method,
			Eligible: accessdomain.EligibleMethods(*contractor, *job),
		}
	}

	price := pricing.Resolve(*job, svc)
	paidAmount := price
	if req.Method == accessdomain.MethodStripe {
		paidAmount = pricing.WithVAT(price, s.cfg.VATRatePercent)
	}

	// Reserve a slot before charging so a full job never takes money.
	// The reservation is provisional until the grant row commits.
	err = s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		return s.slots.ReserveTx(ctx, conn, req.JobID)
	})
	if err != nil {
		s.obsMetrics.IncPurchase(string(req.Method), "slots_full")
		return nil, err
	}

	grant, raced, err := s.completePurchase(ctx, req, contractor, paidAmount)
	if err != nil {
		s.releaseSlot(ctx, req)
		s.obsMetrics.IncPurchase(string(req.Method), "failed")
		return nil, err
	}
	if raced {
		// A concurrent request committed the grant first; its own
		// reservation backs the grant, so this one must go back.
		s.releaseSlot(ctx, req)
		s.obsMetrics.IncPurchase(string(req.Method), "already_granted")
		return grant, nil
	}

	s.obsMetrics.IncPurchase(string(req.Method), "granted")
	s.log.Info("lead access granted",
		zap.Int64("grant_id", int64(grant.ID)),
		zap.Int64("job_id", int64(req.JobID)),
		zap.Int64("contractor_id", int64(req.ContractorID)),
		zap.String("method", string(req.Method)),
		zap.Int64("paid_amount", grant.PaidAmount))
	return grant, nil
}

func (s *Service) releaseSlot(ctx context.Context, req accessdomain.PurchaseRequest) {
	if err := s.slots.Release(ctx, req.JobID); err != nil {
		s.log.Error("slot release after abandoned purchase",
			zap.Int64("job_id", int64(req.JobID)),
			zap.Int64("contractor_id", int64(req.ContractorID)),
			zap.Error(err))
	}
}

// completePurchase takes the money and writes the grant. The gateway
// confirmation runs outside any database transaction; the ledger debit
// and the grant insert commit together. raced reports that a concurrent
// request won the insert and the returned grant is the winner's, not
// this request's.
func (s *Service) completePurchase(ctx context.Context, req accessdomain.PurchaseRequest, contractor *contractordomain.Contractor, paidAmount int64) (_ *accessdomain.AccessGrant, raced bool, _ error) {
	grant := &accessdomain.AccessGrant{
		ID:           s.genID.Generate(),
		ContractorID: req.ContractorID,
		JobID:        req.JobID,
		Method:       req.Method,
		PaidAmount:   paidAmount,
		PurchasedAt:  s.clock.Now(),
	}

	switch req.Method {
	case accessdomain.MethodStripe, accessdomain.MethodStripeSubscriber:
		confirmation, err := s.gateway.Confirm(ctx, req.PaymentRef)
		if err != nil {
			return nil, false, err
		}
		if !confirmation.Succeeded() {
			return nil, false, accessdomain.ErrPaymentNotConfirmed
		}
		intentID := req.PaymentRef
		grant.PaymentIntentID = &intentID
	}

	err := s.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		if req.Method == accessdomain.MethodCredit {
			mode := creditdomain.DebitModeSubscriber
			if !contractor.IsSubscriber() {
				mode = creditdomain.DebitModeTrial
			}
			_, err := s.credits.DebitTx(ctx, conn, creditdomain.DebitRequest{
				ContractorID: req.ContractorID,
				Amount:       1,
				Mode:         mode,
				Reason:       fmt.Sprintf("lead access for job %d", req.JobID),
			})
			if err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, conn, grant); err != nil {
			return err
		}
		jobID := grant.JobID.String()
		return s.audit.AuditLogTx(ctx, conn, "access.purchase", "job", &jobID, map[string]any{
			"contractor_id": grant.ContractorID.String(),
			"method":        string(grant.Method),
			"paid_amount":   grant.PaidAmount,
		})
	})
	if err != nil {
		// A concurrent purchase for the same pair or the same intent won
		// the insert race; hand back the winning grant instead of the
		// constraint violation.
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByPair(ctx, s.db, req.ContractorID, req.JobID)
			if findErr == nil && winner != nil {
				return winner, true, nil
			}
			if req.PaymentRef != "" {
				winner, findErr = s.repo.FindByPaymentIntent(ctx, s.db, req.PaymentRef)
				if findErr == nil && winner != nil {
					return winner, true, nil
				}
			}
		}
		return nil, false, err
	}
	return grant, false, nil
}

func (s *Service) CheckAccess(ctx context.Context, contractorID, jobID snowflake.ID) (accessdomain.CheckAccessResponse, error) {
	contractor, job, svc, err := s.loadParticipants(ctx, contractorID, jobID)
	if err != nil {
		return accessdomain.CheckAccessResponse{}, err
	}

	grant, err := s.repo.FindByPair(ctx, s.db, contractorID, jobID)
	if err != nil {
		return accessdomain.CheckAccessResponse{}, err
	}

	return accessdomain.CheckAccessResponse{
		HasAccess:       grant != nil,
		LeadPrice:       pricing.Resolve(*job, svc),
		EligibleMethods: accessdomain.EligibleMethods(*contractor, *job),
	}, nil
}

// Lead returns the job as the contractor may see it. Customer contact
// details stay nil until a grant exists.
func (s *Service) Lead(ctx context.Context, contractorID, jobID snowflake.ID) (accessdomain.LeadView, error) {
	job, err := s.jobRepo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return accessdomain.LeadView{}, err
	}
	if job == nil {
		return accessdomain.LeadView{}, accessdomain.ErrJobNotFound
	}

	grant, err := s.repo.FindByPair(ctx, s.db, contractorID, jobID)
	if err != nil {
		return accessdomain.LeadView{}, err
	}

	view := accessdomain.LeadView{
		JobID:       job.ID,
		Title:       job.Title,
		Description: job.Description,
		JobSize:     string(job.JobSize),
		Budget:      job.Budget,
		HasAccess:   grant != nil,
	}
	if grant != nil {
		view.CustomerName = job.CustomerName
		view.CustomerPhone = job.CustomerPhone
		view.CustomerEmail = job.CustomerEmail
	}
	return view, nil
}

func (s *Service) loadParticipants(ctx context.Context, contractorID, jobID snowflake.ID) (*contractordomain.Contractor, *jobdomain.Job, *jobdomain.Service, error) {
	contractor, err := s.contractorRepo.FindByID(ctx, s.db, contractorID)
	if err != nil {
		return nil, nil, nil, err
	}
	if contractor == nil {
		return nil, nil, nil, accessdomain.ErrContractorNotFound
	}

	job, err := s.jobRepo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return nil, nil, nil, err
	}
	if job == nil {
		return nil, nil, nil, accessdomain.ErrJobNotFound
	}

	var svc *jobdomain.Service
	if job.ServiceID != nil {
		svc, err = s.jobRepo.FindService(ctx, s.db, *job.ServiceID)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return contractor, job, svc, nil
}
