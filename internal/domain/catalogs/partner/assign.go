package partner

import (
	"context"
	"strings"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// AssignConfig configures AssignJob.
type AssignConfig struct {
	// SellerID is the catalog seller whose customers are assigned.
	SellerID string

	Options []reconcile.Option
}

// AssignJob sets the salesperson (user_id) of a seller's customers to the
// directory user whose login is the seller's email.
type AssignJob struct {
	repo     Repository
	svc      directory.Service
	cfg      AssignConfig
	resolver *directory.Resolver
}

// NewAssignJob creates the "salesperson" job.
func NewAssignJob(repo Repository, svc directory.Service, cfg AssignConfig) (*AssignJob, error) {
	if strings.TrimSpace(cfg.SellerID) == "" {
		return nil, apperror.NewValidation("seller id is required")
	}
	return &AssignJob{repo: repo, svc: svc, cfg: cfg, resolver: directory.NewResolver(svc)}, nil
}

// Name implements domain.Job.
func (j *AssignJob) Name() string { return "salesperson" }

// Run implements domain.Job.
func (j *AssignJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	links, err := j.repo.ListSellerCustomers(ctx, strings.TrimSpace(j.cfg.SellerID))
	if err != nil {
		return nil, apperror.NewDatabase("list seller customers", err)
	}
	logger.Info(ctx, "customers of seller", "seller", j.cfg.SellerID, "count", len(links))

	spec := reconcile.Spec[CustomerLink]{
		Kind: string(directory.Partner) + ".user_id",
		Key: func(l CustomerLink) (reconcile.NaturalKey, error) {
			return reconcile.Key(l.Code), nil
		},
		Find: reconcile.Finder[CustomerLink](j.svc, directory.Partner, "ref", []string{"user_id"}),
		Fields: func(ctx context.Context, l CustomerLink) (directory.FieldMap, error) {
			user, err := j.resolver.Resolve(ctx, directory.User, "login", l.SellerEmail)
			if err != nil {
				return nil, err
			}
			return directory.FieldMap{"user_id": user}, nil
		},
		Apply: reconcile.UpdateExisting[CustomerLink](j.svc, directory.Partner, "partner not in directory"),
	}
	return reconcile.Run(ctx, links, spec, j.cfg.Options...)
}
