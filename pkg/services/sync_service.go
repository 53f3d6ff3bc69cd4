package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
	"github.com/relaycrm/sync-engine/pkg/repositories"
)

// ListClient is the slice of the Pipedrive client the orchestrator needs for
// the bulk fetches.
type ListClient interface {
	ListPersons(ctx context.Context) ([]pipedrive.Person, error)
	ListOrganizations(ctx context.Context) ([]pipedrive.Organization, error)
}

// SyncService runs one full bidirectional sync pass.
type SyncService interface {
	Run(ctx context.Context) (*models.SyncReport, error)
}

type syncService struct {
	mapper     FieldMapper
	matcher    Matcher
	reconciler Reconciler
	remote     ListClient
	personRepo repositories.PersonRepository
	orgRepo    repositories.OrganizationRepository
	logger     *zap.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(
	mapper FieldMapper,
	matcher Matcher,
	reconciler Reconciler,
	remote ListClient,
	personRepo repositories.PersonRepository,
	orgRepo repositories.OrganizationRepository,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		mapper:     mapper,
		matcher:    matcher,
		reconciler: reconciler,
		remote:     remote,
		personRepo: personRepo,
		orgRepo:    orgRepo,
		logger:     logger.Named("sync"),
	}
}

var _ SyncService = (*syncService)(nil)

// Run resolves the field mapping, fetches both sides, then reconciles
// organizations before people so person org references resolve against
// freshly assigned external ids. Reconciliation within a phase is sequential
// to stay inside the remote rate limit.
func (s *syncService) Run(ctx context.Context) (*models.SyncReport, error) {
	report := &models.SyncReport{StartedAt: time.Now().UTC()}

	mapping, err := s.mapper.ResolveOrCreateFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve field mapping: %w", err)
	}

	var (
		remotePersons []pipedrive.Person
		remoteOrgs    []pipedrive.Organization
		localPeople   []*models.Person
		localOrgs     []*models.Organization
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remotePersons, err = s.remote.ListPersons(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		remoteOrgs, err = s.remote.ListOrganizations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		localPeople, err = s.personRepo.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		localOrgs, err = s.orgRepo.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch sync populations: %w", err)
	}

	s.logger.Info("Fetched sync populations",
		zap.Int("remote_persons", len(remotePersons)),
		zap.Int("remote_orgs", len(remoteOrgs)),
		zap.Int("local_people", len(localPeople)),
		zap.Int("local_orgs", len(localOrgs)))

	orgResult := s.matcher.MatchOrganizations(localOrgs, remoteOrgs)
	report.Organizations = s.reconciler.ReconcileOrganizations(ctx, orgResult)

	// Reload so the link tables include ids assigned during org reconciliation.
	reloadedOrgs, err := s.orgRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload organizations: %w", err)
	}
	links := NewOrgLinks(reloadedOrgs)

	personResult := s.matcher.MatchPeople(localPeople, remotePersons)
	report.People = s.reconciler.ReconcilePeople(ctx, mapping, personResult, links)

	report.FinishedAt = time.Now().UTC()

	s.logger.Info("Sync run complete",
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		zap.Int("orgs_created", report.Organizations.Created),
		zap.Int("orgs_updated", report.Organizations.Updated),
		zap.Int("orgs_skipped", report.Organizations.Skipped),
		zap.Int("orgs_errors", report.Organizations.Errors),
		zap.Int("people_created", report.People.Created),
		zap.Int("people_updated", report.People.Updated),
		zap.Int("people_skipped", report.People.Skipped),
		zap.Int("people_errors", report.People.Errors))

	return report, nil
}
