package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/apperrors"
	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
	"github.com/relaycrm/sync-engine/pkg/repositories"
)

// RemoteClient is the slice of the Pipedrive client the reconciler needs.
type RemoteClient interface {
	CreatePerson(ctx context.Context, body pipedrive.PersonInput) (*pipedrive.Person, error)
	UpdatePerson(ctx context.Context, id int64, body pipedrive.PersonInput) (*pipedrive.Person, error)
	SearchPersonByEmail(ctx context.Context, email string) (*pipedrive.SearchPerson, error)
	CreateOrganization(ctx context.Context, body pipedrive.OrganizationInput) (*pipedrive.Organization, error)
	UpdateOrganization(ctx context.Context, id int64, body pipedrive.OrganizationInput) (*pipedrive.Organization, error)
}

// OrgLinks resolves organization references in both directions. It is rebuilt
// after organization reconciliation so person reconciliation sees every
// freshly assigned external id.
type OrgLinks struct {
	LocalByRemote map[int64]uuid.UUID
	RemoteByLocal map[uuid.UUID]int64
}

// NewOrgLinks builds the link tables from the current local organizations.
func NewOrgLinks(orgs []*models.Organization) *OrgLinks {
	links := &OrgLinks{
		LocalByRemote: make(map[int64]uuid.UUID),
		RemoteByLocal: make(map[uuid.UUID]int64),
	}
	for _, org := range orgs {
		if org.PipedriveOrgID == nil {
			continue
		}
		links.LocalByRemote[*org.PipedriveOrgID] = org.ID
		links.RemoteByLocal[org.ID] = *org.PipedriveOrgID
	}
	return links
}

// Reconciler applies the per-entity sync decisions. Every entity is handled
// independently: an error is counted and logged, and the run moves on.
type Reconciler interface {
	ReconcileOrganizations(ctx context.Context, result *OrgMatchResult) models.EntityCounts
	ReconcilePeople(ctx context.Context, mapping *models.FieldMapping, result *PersonMatchResult, links *OrgLinks) models.EntityCounts
}

type reconciler struct {
	personRepo repositories.PersonRepository
	orgRepo    repositories.OrganizationRepository
	remote     RemoteClient
	logger     *zap.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(personRepo repositories.PersonRepository, orgRepo repositories.OrganizationRepository, remote RemoteClient, logger *zap.Logger) Reconciler {
	return &reconciler{
		personRepo: personRepo,
		orgRepo:    orgRepo,
		remote:     remote,
		logger:     logger.Named("reconciler"),
	}
}

var _ Reconciler = (*reconciler)(nil)

// ============================================================================
// Organizations
// ============================================================================

func (s *reconciler) ReconcileOrganizations(ctx context.Context, result *OrgMatchResult) models.EntityCounts {
	var counts models.EntityCounts

	for _, r := range result.RemoteOnly {
		if err := s.createLocalOrg(ctx, r); err != nil {
			counts.Errors++
			s.logger.Error("Failed to create local organization",
				zap.Int64("remote_id", r.ID),
				zap.String("name", r.Name),
				zap.Error(err))
			continue
		}
		counts.Created++
	}

	for _, l := range result.LocalOnly {
		action, err := s.pushOrg(ctx, l)
		if err != nil {
			counts.Errors++
			s.logger.Error("Failed to push organization",
				zap.String("id", l.ID.String()),
				zap.String("name", l.Name),
				zap.Error(err))
			continue
		}
		if action == actionCreated {
			counts.Created++
		} else {
			counts.Updated++
		}
	}

	for _, pair := range result.Matched {
		action, err := s.reconcileMatchedOrg(ctx, pair)
		if err != nil {
			counts.Errors++
			s.logger.Error("Failed to reconcile organization",
				zap.String("id", pair.Local.ID.String()),
				zap.Int64("remote_id", pair.Remote.ID),
				zap.Error(err))
			continue
		}
		switch action {
		case actionUpdated:
			counts.Updated++
		case actionSkipped:
			counts.Skipped++
		}
	}

	return counts
}

func (s *reconciler) createLocalOrg(ctx context.Context, r *pipedrive.Organization) error {
	now := time.Now().UTC()
	remoteID := r.ID
	org := &models.Organization{
		Name:              r.Name,
		WebsiteURL:        r.URL,
		NormalizedDomain:  remoteOrgDomain(r),
		PipedriveOrgID:    &remoteID,
		LastPipedriveSync: &now,
	}
	return s.orgRepo.Create(ctx, org)
}

func (s *reconciler) pushOrg(ctx context.Context, l *models.Organization) (reconcileAction, error) {
	body := orgPayload(l)

	// A known remote id may be stale (the matcher found nothing for it).
	if l.PipedriveOrgID != nil {
		_, err := s.remote.UpdateOrganization(ctx, *l.PipedriveOrgID, body)
		if err == nil {
			return actionUpdated, s.orgRepo.TouchSync(ctx, l.ID)
		}
		if !pipedrive.IsNotFound(err) {
			return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
		}
		s.logger.Warn("Stale organization id, recreating remotely",
			zap.String("id", l.ID.String()),
			zap.Int64("stale_remote_id", *l.PipedriveOrgID))
		if err := s.orgRepo.SetExternalID(ctx, l.ID, nil); err != nil {
			return actionSkipped, err
		}
	}

	created, err := s.remote.CreateOrganization(ctx, body)
	if err != nil {
		return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
	}
	if err := s.orgRepo.SetExternalID(ctx, l.ID, &created.ID); err != nil {
		return actionSkipped, err
	}
	return actionCreated, s.orgRepo.TouchSync(ctx, l.ID)
}

type reconcileAction int

const (
	actionSkipped reconcileAction = iota
	actionCreated
	actionUpdated
)

func (s *reconciler) reconcileMatchedOrg(ctx context.Context, pair OrgMatch) (reconcileAction, error) {
	l, r := pair.Local, pair.Remote

	// Persist an id discovered by fuzzy matching.
	if l.PipedriveOrgID == nil {
		if err := s.orgRepo.SetExternalID(ctx, l.ID, &r.ID); err != nil {
			return actionSkipped, err
		}
	}

	remoteUpdated := r.EffectiveUpdateTime()
	remoteNewerThanSync := l.LastPipedriveSync == nil || remoteUpdated.After(*l.LastPipedriveSync)
	remoteNewerThanLocal := l.LastPipedriveSync == nil || remoteUpdated.After(l.UpdatedAt)

	switch {
	case remoteNewerThanSync && remoteNewerThanLocal:
		fields := orgPullDiff(l, r)
		if len(fields) == 0 {
			return actionSkipped, s.orgRepo.TouchSync(ctx, l.ID)
		}
		if err := s.orgRepo.UpdateFields(ctx, l.ID, fields); err != nil {
			return actionSkipped, err
		}
		return actionUpdated, nil

	case remoteNewerThanSync:
		if _, err := s.remote.UpdateOrganization(ctx, r.ID, orgPayload(l)); err != nil {
			return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
		}
		if err := s.orgRepo.TouchSync(ctx, l.ID); err != nil {
			return actionSkipped, err
		}
		return actionUpdated, nil

	default:
		return actionSkipped, nil
	}
}

// orgPullDiff computes the minimal local update for a remote-wins pull.
// website_url is only overwritten when the remote actually has one.
func orgPullDiff(l *models.Organization, r *pipedrive.Organization) map[string]any {
	fields := make(map[string]any)

	if r.Name != "" && r.Name != l.Name {
		fields["name"] = r.Name
	}
	if r.URL != "" && r.URL != l.WebsiteURL {
		fields["website_url"] = r.URL
		if domain := NormalizeDomain(r.URL); domain != "" && domain != l.NormalizedDomain {
			fields["normalized_domain"] = domain
		}
	}

	return fields
}

func orgPayload(l *models.Organization) pipedrive.OrganizationInput {
	body := pipedrive.OrganizationInput{
		"name":       l.Name,
		"visible_to": 3,
	}
	if l.WebsiteURL != "" {
		body["url"] = l.WebsiteURL
	}
	return body
}

// ============================================================================
// People
// ============================================================================

func (s *reconciler) ReconcilePeople(ctx context.Context, mapping *models.FieldMapping, result *PersonMatchResult, links *OrgLinks) models.EntityCounts {
	var counts models.EntityCounts

	for _, r := range result.RemoteOnly {
		if err := s.createLocalPerson(ctx, mapping, r, links); err != nil {
			counts.Errors++
			s.logger.Error("Failed to create local person",
				zap.Int64("remote_id", r.ID),
				zap.String("name", r.Name),
				zap.Error(err))
			continue
		}
		counts.Created++
	}

	for _, l := range result.LocalOnly {
		action, err := s.pushPerson(ctx, mapping, l, links)
		if err != nil {
			counts.Errors++
			s.logger.Error("Failed to push person",
				zap.String("id", l.ID.String()),
				zap.String("name", l.FullName),
				zap.Error(err))
			continue
		}
		if action == actionCreated {
			counts.Created++
		} else {
			counts.Updated++
		}
	}

	for _, pair := range result.Matched {
		action, err := s.reconcileMatchedPerson(ctx, mapping, pair, links)
		if err != nil {
			counts.Errors++
			s.logger.Error("Failed to reconcile person",
				zap.String("id", pair.Local.ID.String()),
				zap.Int64("remote_id", pair.Remote.ID),
				zap.Error(err))
			continue
		}
		switch action {
		case actionUpdated:
			counts.Updated++
		case actionSkipped:
			counts.Skipped++
		}
	}

	return counts
}

func (s *reconciler) createLocalPerson(ctx context.Context, mapping *models.FieldMapping, r *pipedrive.Person, links *OrgLinks) error {
	now := time.Now().UTC()
	remoteID := r.ID

	person := &models.Person{
		FullName:          r.Name,
		Phone:             r.PrimaryPhone(),
		Notes:             r.Notes,
		PipedriveID:       &remoteID,
		LastPipedriveSync: &now,
	}
	person.WorkEmail, person.PersonalEmail = splitEmails(r)

	if r.OrgID != nil {
		localOrgID, ok := links.LocalByRemote[r.OrgID.Value]
		if !ok {
			return fmt.Errorf("%w: remote person references organization %d with no local record",
				apperrors.ErrNoMatchFound, r.OrgID.Value)
		}
		person.OrganizationID = &localOrgID
	}

	s.applyRemoteCustomFields(person, mapping, r)

	return s.personRepo.Create(ctx, person)
}

// applyRemoteCustomFields copies mapped custom-field values from the remote
// record onto the local one. Unknown enum option ids and labels outside the
// taxonomy are dropped with a log line.
func (s *reconciler) applyRemoteCustomFields(person *models.Person, mapping *models.FieldMapping, r *pipedrive.Person) {
	for _, field := range models.RequiredPersonFields {
		key, ok := mapping.Key(field)
		if !ok {
			continue
		}
		raw, ok := r.CustomFields[key]
		if !ok {
			continue
		}

		if field.IsEnum() {
			label, ok := s.enumLabel(mapping, field, raw, r.ID)
			if !ok {
				continue
			}
			if field == models.FieldPrimaryContactType {
				person.PrimaryContactType = label
			} else {
				person.SecondaryContactType = label
			}
			continue
		}

		if field == models.FieldLinkedinFollowers {
			if n, ok := parseInt(raw); ok {
				person.NumFollowers = &n
			}
			continue
		}

		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		switch field {
		case models.FieldLinkedinProfile:
			person.LinkedinProfile = value
		case models.FieldJobTitle:
			person.Title = value
		case models.FieldHeadline:
			person.Headline = value
		case models.FieldSummary:
			person.Summary = value
		case models.FieldLocation:
			person.LocationName = value
		}
	}
}

func (s *reconciler) enumLabel(mapping *models.FieldMapping, field models.SemanticField, raw any, remoteID int64) (string, bool) {
	optionID, ok := parseInt(raw)
	if !ok {
		return "", false
	}
	label, ok := mapping.Label(field, optionID)
	if !ok {
		s.logger.Warn("Unknown enum option id, dropping value",
			zap.String("field", field.DisplayName()),
			zap.Int("option_id", optionID),
			zap.Int64("remote_id", remoteID))
		return "", false
	}
	if !models.ValidContactType(label) {
		s.logger.Warn("Enum label outside taxonomy, dropping value",
			zap.String("field", field.DisplayName()),
			zap.String("label", label),
			zap.Int64("remote_id", remoteID))
		return "", false
	}
	return label, true
}

func (s *reconciler) pushPerson(ctx context.Context, mapping *models.FieldMapping, l *models.Person, links *OrgLinks) (reconcileAction, error) {
	body := s.personPayload(mapping, l, links)

	if l.PipedriveID != nil {
		_, err := s.remote.UpdatePerson(ctx, *l.PipedriveID, body)
		if err == nil {
			return actionUpdated, s.personRepo.TouchSync(ctx, l.ID)
		}
		if !pipedrive.IsNotFound(err) {
			return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
		}
		s.logger.Warn("Stale person id, recreating remotely",
			zap.String("id", l.ID.String()),
			zap.Int64("stale_remote_id", *l.PipedriveID))
		if err := s.personRepo.SetExternalID(ctx, l.ID, nil); err != nil {
			return actionSkipped, err
		}
	}

	// Search before create so a person already present remotely under a
	// different name is adopted rather than duplicated.
	if found, err := s.searchByEmails(ctx, l); err != nil {
		return actionSkipped, err
	} else if found != nil {
		if err := s.personRepo.SetExternalID(ctx, l.ID, &found.ID); err != nil {
			return actionSkipped, err
		}
		if _, err := s.remote.UpdatePerson(ctx, found.ID, body); err != nil {
			return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
		}
		return actionUpdated, s.personRepo.TouchSync(ctx, l.ID)
	}

	created, err := s.remote.CreatePerson(ctx, body)
	if err != nil {
		return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
	}
	if err := s.personRepo.SetExternalID(ctx, l.ID, &created.ID); err != nil {
		return actionSkipped, err
	}
	return actionCreated, s.personRepo.TouchSync(ctx, l.ID)
}

func (s *reconciler) searchByEmails(ctx context.Context, l *models.Person) (*pipedrive.SearchPerson, error) {
	for _, email := range []string{l.WorkEmail, l.PersonalEmail} {
		if email == "" {
			continue
		}
		found, err := s.remote.SearchPersonByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to search for existing person: %w", err)
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

func (s *reconciler) reconcileMatchedPerson(ctx context.Context, mapping *models.FieldMapping, pair PersonMatch, links *OrgLinks) (reconcileAction, error) {
	l, r := pair.Local, pair.Remote

	if l.PipedriveID == nil {
		if err := s.personRepo.SetExternalID(ctx, l.ID, &r.ID); err != nil {
			return actionSkipped, err
		}
	}

	remoteUpdated := r.EffectiveUpdateTime()
	remoteNewerThanSync := l.LastPipedriveSync == nil || remoteUpdated.After(*l.LastPipedriveSync)
	remoteNewerThanLocal := l.LastPipedriveSync == nil || remoteUpdated.After(l.UpdatedAt)

	switch {
	case remoteNewerThanSync && remoteNewerThanLocal:
		fields := s.personPullDiff(mapping, l, r, links)
		if len(fields) == 0 {
			return actionSkipped, s.personRepo.TouchSync(ctx, l.ID)
		}
		if err := s.personRepo.UpdateFields(ctx, l.ID, fields); err != nil {
			return actionSkipped, err
		}
		return actionUpdated, nil

	case remoteNewerThanSync:
		if _, err := s.remote.UpdatePerson(ctx, r.ID, s.personPayload(mapping, l, links)); err != nil {
			return actionSkipped, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
		}
		if err := s.personRepo.TouchSync(ctx, l.ID); err != nil {
			return actionSkipped, err
		}
		return actionUpdated, nil

	default:
		return actionSkipped, nil
	}
}

// personPullDiff computes the minimal local update for a remote-wins pull.
// Only fields whose remote value is present and different are written.
func (s *reconciler) personPullDiff(mapping *models.FieldMapping, l *models.Person, r *pipedrive.Person, links *OrgLinks) map[string]any {
	fields := make(map[string]any)

	if r.Name != "" && r.Name != l.FullName {
		fields["full_name"] = r.Name
	}

	work, personal := splitEmails(r)
	if work != "" && !strings.EqualFold(work, l.WorkEmail) {
		fields["work_email"] = work
	}
	if personal != "" && !strings.EqualFold(personal, l.PersonalEmail) {
		fields["personal_email"] = personal
	}

	if phone := r.PrimaryPhone(); phone != "" && phone != l.Phone {
		fields["phone"] = phone
	}
	if r.Notes != "" && r.Notes != l.Notes {
		fields["notes"] = r.Notes
	}

	switch {
	case r.OrgID != nil:
		// A remote reassignment to an unresolvable organization is left alone
		// rather than guessed at.
		if localOrgID, ok := links.LocalByRemote[r.OrgID.Value]; ok {
			if l.OrganizationID == nil || *l.OrganizationID != localOrgID {
				fields["organization_id"] = localOrgID
			}
		}
	case l.OrganizationID != nil:
		// Organization removed remotely: clear the local link.
		fields["organization_id"] = (*uuid.UUID)(nil)
	}

	for _, field := range models.RequiredPersonFields {
		key, ok := mapping.Key(field)
		if !ok {
			continue
		}
		raw, ok := r.CustomFields[key]
		if !ok {
			continue
		}

		if field.IsEnum() {
			label, ok := s.enumLabel(mapping, field, raw, r.ID)
			if !ok {
				continue
			}
			column := "primary_contact_type"
			current := l.PrimaryContactType
			if field == models.FieldSecondaryContactType {
				column = "secondary_contact_type"
				current = l.SecondaryContactType
			}
			if label != current {
				fields[column] = label
			}
			continue
		}

		if field == models.FieldLinkedinFollowers {
			if n, ok := parseInt(raw); ok && (l.NumFollowers == nil || *l.NumFollowers != n) {
				fields["num_followers"] = n
			}
			continue
		}

		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		column, current := personColumnFor(field, l)
		if value != current {
			fields[column] = value
		}
	}

	return fields
}

// personPayload builds the full remote write body for a local person. Enum
// values travel as option ids; an enum label without an option id is dropped.
func (s *reconciler) personPayload(mapping *models.FieldMapping, l *models.Person, links *OrgLinks) pipedrive.PersonInput {
	body := pipedrive.PersonInput{
		"name":       l.FullName,
		"visible_to": 3,
	}

	var emails []pipedrive.EmailEntry
	if l.WorkEmail != "" {
		emails = append(emails, pipedrive.EmailEntry{Label: "work", Value: l.WorkEmail, Primary: true})
	}
	if l.PersonalEmail != "" {
		emails = append(emails, pipedrive.EmailEntry{Label: "personal", Value: l.PersonalEmail, Primary: len(emails) == 0})
	}
	if len(emails) > 0 {
		body["email"] = emails
	}

	if l.Phone != "" {
		body["phone"] = []pipedrive.PhoneEntry{{Label: "main", Value: l.Phone, Primary: true}}
	}
	if l.Notes != "" {
		body["notes"] = l.Notes
	}

	if l.OrganizationID != nil {
		if remoteOrgID, ok := links.RemoteByLocal[*l.OrganizationID]; ok {
			body["org_id"] = remoteOrgID
		}
	}

	for _, field := range models.RequiredPersonFields {
		key, ok := mapping.Key(field)
		if !ok {
			continue
		}

		if field.IsEnum() {
			label := l.PrimaryContactType
			if field == models.FieldSecondaryContactType {
				label = l.SecondaryContactType
			}
			if label == "" {
				continue
			}
			optionID, ok := mapping.OptionID(field, label)
			if !ok {
				s.logger.Warn("Enum label has no option id, dropping value",
					zap.String("field", field.DisplayName()),
					zap.String("label", label),
					zap.String("id", l.ID.String()))
				continue
			}
			body[key] = optionID
			continue
		}

		if field == models.FieldLinkedinFollowers {
			if l.NumFollowers != nil {
				body[key] = *l.NumFollowers
			}
			continue
		}

		_, value := personColumnFor(field, l)
		if value != "" {
			body[key] = value
		}
	}

	return body
}

// ============================================================================
// Helper Functions
// ============================================================================

// splitEmails maps the labeled remote email entries onto the two local
// columns. An unlabeled primary entry counts as the work email.
func splitEmails(r *pipedrive.Person) (work, personal string) {
	work = r.EmailByLabel("work")
	personal = r.EmailByLabel("personal")
	if work == "" {
		for _, entry := range r.Email {
			if entry.Value == "" || strings.EqualFold(entry.Value, personal) {
				continue
			}
			work = entry.Value
			break
		}
	}
	return work, personal
}

// personColumnFor maps a string-valued semantic field to its local column
// name and current value.
func personColumnFor(field models.SemanticField, l *models.Person) (column, value string) {
	switch field {
	case models.FieldLinkedinProfile:
		return "linkedin_profile", l.LinkedinProfile
	case models.FieldJobTitle:
		return "title", l.Title
	case models.FieldHeadline:
		return "headline", l.Headline
	case models.FieldSummary:
		return "summary", l.Summary
	case models.FieldLocation:
		return "location_name", l.LocationName
	default:
		return "", ""
	}
}

// parseInt normalizes the numeric shapes the remote API emits for option ids
// and integer custom fields.
func parseInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
