package services

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/models"
	"github.com/relaycrm/sync-engine/pkg/pipedrive"
)

// OrgMatch pairs a local organization with its remote counterpart.
type OrgMatch struct {
	Local  *models.Organization
	Remote *pipedrive.Organization
}

// OrgMatchResult partitions the organization population for one run.
type OrgMatchResult struct {
	Matched    []OrgMatch
	LocalOnly  []*models.Organization
	RemoteOnly []*pipedrive.Organization
}

// PersonMatch pairs a local person with its remote counterpart.
type PersonMatch struct {
	Local  *models.Person
	Remote *pipedrive.Person
}

// PersonMatchResult partitions the person population for one run.
type PersonMatchResult struct {
	Matched    []PersonMatch
	LocalOnly  []*models.Person
	RemoteOnly []*pipedrive.Person
}

// Matcher pairs local and remote records. Priority for organizations is
// external id, then normalized domain, then case-insensitive name; for people
// it is external id, then work email, then personal email, then name. Each
// remote record is claimed at most once.
type Matcher interface {
	MatchOrganizations(local []*models.Organization, remote []pipedrive.Organization) *OrgMatchResult
	MatchPeople(local []*models.Person, remote []pipedrive.Person) *PersonMatchResult
}

type matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a new Matcher.
func NewMatcher(logger *zap.Logger) Matcher {
	return &matcher{logger: logger.Named("matcher")}
}

var _ Matcher = (*matcher)(nil)

// ============================================================================
// Organizations
// ============================================================================

func (m *matcher) MatchOrganizations(local []*models.Organization, remote []pipedrive.Organization) *OrgMatchResult {
	byID := make(map[int64]*pipedrive.Organization, len(remote))
	byDomain := make(map[string]*pipedrive.Organization)
	byName := make(map[string]*pipedrive.Organization)

	for i := range remote {
		r := &remote[i]
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r

		if domain := remoteOrgDomain(r); domain != "" {
			if _, dup := byDomain[domain]; dup {
				m.logger.Debug("Duplicate remote organization domain, keeping first",
					zap.String("domain", domain),
					zap.Int64("id", r.ID))
			} else {
				byDomain[domain] = r
			}
		}

		if name := strings.ToLower(strings.TrimSpace(r.Name)); name != "" {
			if _, dup := byName[name]; dup {
				m.logger.Debug("Duplicate remote organization name, keeping first",
					zap.String("name", name),
					zap.Int64("id", r.ID))
			} else {
				byName[name] = r
			}
		}
	}

	result := &OrgMatchResult{}
	claimed := make(map[int64]bool, len(remote))

	for _, l := range local {
		r := m.findRemoteOrg(l, byID, byDomain, byName, claimed)
		if r == nil {
			result.LocalOnly = append(result.LocalOnly, l)
			continue
		}
		claimed[r.ID] = true
		result.Matched = append(result.Matched, OrgMatch{Local: l, Remote: r})
	}

	for i := range remote {
		if !claimed[remote[i].ID] {
			result.RemoteOnly = append(result.RemoteOnly, &remote[i])
		}
	}

	m.logger.Info("Matched organizations",
		zap.Int("matched", len(result.Matched)),
		zap.Int("local_only", len(result.LocalOnly)),
		zap.Int("remote_only", len(result.RemoteOnly)))

	return result
}

func (m *matcher) findRemoteOrg(l *models.Organization, byID map[int64]*pipedrive.Organization, byDomain, byName map[string]*pipedrive.Organization, claimed map[int64]bool) *pipedrive.Organization {
	if l.PipedriveOrgID != nil {
		if r, ok := byID[*l.PipedriveOrgID]; ok && !claimed[r.ID] {
			return r
		}
	}

	domain := l.NormalizedDomain
	if domain == "" {
		domain = NormalizeDomain(l.WebsiteURL)
	}
	if domain != "" {
		if r, ok := byDomain[domain]; ok && !claimed[r.ID] {
			return r
		}
	}

	if name := strings.ToLower(strings.TrimSpace(l.Name)); name != "" {
		if r, ok := byName[name]; ok && !claimed[r.ID] {
			return r
		}
	}

	return nil
}

// ============================================================================
// People
// ============================================================================

func (m *matcher) MatchPeople(local []*models.Person, remote []pipedrive.Person) *PersonMatchResult {
	byID := make(map[int64]*pipedrive.Person, len(remote))
	byEmail := make(map[string]*pipedrive.Person)
	byName := make(map[string]*pipedrive.Person)

	for i := range remote {
		r := &remote[i]
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r

		for _, entry := range r.Email {
			email := strings.ToLower(strings.TrimSpace(entry.Value))
			if email == "" {
				continue
			}
			if _, dup := byEmail[email]; dup {
				m.logger.Debug("Duplicate remote person email, keeping first",
					zap.String("email", email),
					zap.Int64("id", r.ID))
				continue
			}
			byEmail[email] = r
		}

		if name := strings.ToLower(strings.TrimSpace(r.Name)); name != "" {
			if _, dup := byName[name]; dup {
				m.logger.Debug("Duplicate remote person name, keeping first",
					zap.String("name", name),
					zap.Int64("id", r.ID))
			} else {
				byName[name] = r
			}
		}
	}

	result := &PersonMatchResult{}
	claimed := make(map[int64]bool, len(remote))

	for _, l := range local {
		r := m.findRemotePerson(l, byID, byEmail, byName, claimed)
		if r == nil {
			result.LocalOnly = append(result.LocalOnly, l)
			continue
		}
		claimed[r.ID] = true
		result.Matched = append(result.Matched, PersonMatch{Local: l, Remote: r})
	}

	for i := range remote {
		if !claimed[remote[i].ID] {
			result.RemoteOnly = append(result.RemoteOnly, &remote[i])
		}
	}

	m.logger.Info("Matched people",
		zap.Int("matched", len(result.Matched)),
		zap.Int("local_only", len(result.LocalOnly)),
		zap.Int("remote_only", len(result.RemoteOnly)))

	return result
}

func (m *matcher) findRemotePerson(l *models.Person, byID map[int64]*pipedrive.Person, byEmail, byName map[string]*pipedrive.Person, claimed map[int64]bool) *pipedrive.Person {
	if l.PipedriveID != nil {
		if r, ok := byID[*l.PipedriveID]; ok && !claimed[r.ID] {
			return r
		}
	}

	for _, email := range []string{l.WorkEmail, l.PersonalEmail} {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if r, ok := byEmail[email]; ok && !claimed[r.ID] {
			return r
		}
	}

	if name := strings.ToLower(strings.TrimSpace(l.FullName)); name != "" {
		if r, ok := byName[name]; ok && !claimed[r.ID] {
			return r
		}
	}

	return nil
}

// ============================================================================
// Domain Helpers
// ============================================================================

// NormalizeDomain reduces a website URL or bare hostname to a lower-cased
// domain with any "www." prefix stripped. Returns "" when no host can be
// extracted.
func NormalizeDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}

	host := website
	if strings.Contains(website, "://") {
		if u, err := url.Parse(website); err == nil && u.Host != "" {
			host = u.Host
		}
	}

	// Bare hostnames may still carry a path or port.
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// DomainFromEmail extracts the lower-cased domain part of an email address.
func DomainFromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// remoteOrgDomain derives a match key for a remote organization, preferring
// its cc_email inbox domain over the website URL.
func remoteOrgDomain(r *pipedrive.Organization) string {
	if d := DomainFromEmail(r.CCEmail); d != "" {
		// cc_email domains look like "acmecorp.pipedrivemail.com"; only the
		// customer-facing part identifies the company, so fall through to the
		// website when the inbox is on pipedrivemail.
		if !strings.HasSuffix(d, "pipedrivemail.com") {
			return d
		}
	}
	return NormalizeDomain(r.URL)
}
