package usecase

import (
	"context"
	"fmt"
	"time"

	allowdomain "investor-portal/internal/allowlist/domain"
	"investor-portal/internal/allowlist/dto"
	"investor-portal/internal/allowlist/repository"
	userdomain "investor-portal/internal/user/domain"
	userrepo "investor-portal/internal/user/repository"
	"investor-portal/pkg/apperror"
	"investor-portal/pkg/events"
	"investor-portal/pkg/metrics"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// UserDirectory answers whether the identity provider knows an account.
type UserDirectory interface {
	UserExists(ctx context.Context, email string) (bool, error)
}

// WelcomeNotifier schedules the welcome email for a newly listed address.
// Implementations must not block on delivery.
type WelcomeNotifier interface {
	NotifyWelcome(ctx context.Context, email string) error
}

type AllowlistUsecase interface {
	IsApproved(ctx context.Context, email string) (bool, error)
	Check(ctx context.Context, email string) (*dto.CheckAllowlistResponse, error)
	AddEmail(ctx context.Context, email string) error
	RemoveEmail(ctx context.Context, email string) (domainDeleted bool, err error)
	AddDomain(ctx context.Context, domain string) error
	RemoveDomain(ctx context.Context, domain string) error
	// EnsureEmail lists an address without notifying it. added is false when
	// it was already listed.
	EnsureEmail(ctx context.Context, email string) (added bool, err error)
	SyncOnLogin(ctx context.Context, uid, email string) (*userdomain.UserProfile, error)
	List(ctx context.Context) ([]dto.DomainView, error)
	// ListedEmails is the union of every explicitly listed address.
	ListedEmails(ctx context.Context) ([]string, error)
}

type allowlistUsecase struct {
	domains   repository.DomainRepository
	users     userrepo.UserRepository
	directory UserDirectory
	policy    *Policy
	notifier  WelcomeNotifier
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    kitlog.Logger
	now       func() time.Time
}

func NewAllowlistUsecase(domains repository.DomainRepository, users userrepo.UserRepository, directory UserDirectory, logger kitlog.Logger) AllowlistUsecase {
	return &allowlistUsecase{
		domains:   domains,
		users:     users,
		directory: directory,
		policy:    NewPolicy(domains),
		publisher: events.NoopPublisher{},
		logger:    kitlog.With(logger, "component", "allowlist"),
		now:       time.Now,
	}
}

// Optional collaborators, set after construction.
type Option func(*allowlistUsecase)

func WithNotifier(n WelcomeNotifier) Option   { return func(u *allowlistUsecase) { u.notifier = n } }
func WithPublisher(p events.Publisher) Option { return func(u *allowlistUsecase) { u.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option   { return func(u *allowlistUsecase) { u.metrics = m } }
func WithClock(now func() time.Time) Option   { return func(u *allowlistUsecase) { u.now = now } }

func Configure(uc AllowlistUsecase, opts ...Option) {
	if u, ok := uc.(*allowlistUsecase); ok {
		for _, opt := range opts {
			opt(u)
		}
	}
}

func (u *allowlistUsecase) IsApproved(ctx context.Context, email string) (bool, error) {
	return u.policy.IsApproved(ctx, email)
}

func (u *allowlistUsecase) Check(ctx context.Context, raw string) (*dto.CheckAllowlistResponse, error) {
	email := allowdomain.Normalize(raw)
	if _, ok := allowdomain.DomainOf(email); !ok {
		return nil, apperror.Validation("Valid email required.")
	}

	approved, err := u.policy.IsApproved(ctx, email)
	if err != nil {
		return nil, apperror.Upstream("Failed to verify allowlist.", err)
	}

	existing, err := u.directory.UserExists(ctx, email)
	if err != nil {
		level.Warn(u.logger).Log("msg", "user lookup failed", "err", err)
		existing = false
	}
	return &dto.CheckAllowlistResponse{Approved: approved, IsExistingUser: existing}, nil
}

func (u *allowlistUsecase) AddEmail(ctx context.Context, raw string) (err error) {
	defer func() { u.metrics.AllowlistOp("add_email", err) }()

	email, domain, err := parseEmail(raw)
	if err != nil {
		return err
	}

	added, err := u.listEmail(ctx, domain, email)
	if err != nil {
		return err
	}
	if !added {
		return apperror.Conflict("Email already exists.")
	}

	if _, err := u.users.UpdateFlagsByEmail(ctx, email, userdomain.FlagPatch{
		Approved:   userdomain.Bool(true),
		Subscribed: userdomain.Bool(true),
	}); err != nil {
		return apperror.Upstream("Failed to sync user record.", err)
	}

	u.notifyWelcome(ctx, email)
	u.publisher.Publish(ctx, events.New(events.EmailAdded, email, map[string]string{"domain": domain}))
	level.Info(u.logger).Log("msg", "email added", "email", email)
	return nil
}

func (u *allowlistUsecase) EnsureEmail(ctx context.Context, raw string) (bool, error) {
	email, domain, err := parseEmail(raw)
	if err != nil {
		return false, err
	}
	added, err := u.listEmail(ctx, domain, email)
	if err != nil {
		return false, err
	}
	if _, err := u.users.UpdateFlagsByEmail(ctx, email, userdomain.FlagPatch{Approved: userdomain.Bool(true)}); err != nil {
		return false, apperror.Upstream("Failed to sync user record.", err)
	}
	return added, nil
}

func (u *allowlistUsecase) listEmail(ctx context.Context, domain, email string) (bool, error) {
	var added bool
	err := u.domains.Mutate(ctx, domain, func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		if cur == nil {
			added = true
			return &allowdomain.DomainRecord{Domain: domain, Emails: []string{email}}, true, nil
		}
		added = cur.AddEmail(email)
		return cur, added, nil
	})
	if err != nil {
		return false, apperror.Upstream("Failed to manage allowlist.", err)
	}
	return added, nil
}

func (u *allowlistUsecase) RemoveEmail(ctx context.Context, raw string) (domainDeleted bool, err error) {
	defer func() { u.metrics.AllowlistOp("remove_email", err) }()

	email, domain, err := parseEmail(raw)
	if err != nil {
		return false, err
	}

	var found, listed bool
	err = u.domains.Mutate(ctx, domain, func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		found, listed, domainDeleted = cur != nil, false, false
		if cur == nil {
			return nil, false, nil
		}
		if listed = cur.RemoveEmail(email); !listed {
			return nil, false, nil
		}
		// An emptied record must not linger as an implicit domain approval.
		if len(cur.Emails) == 0 {
			domainDeleted = true
			return nil, true, nil
		}
		return cur, true, nil
	})
	if err != nil {
		return false, apperror.Upstream("Failed to manage allowlist.", err)
	}
	if !found {
		return false, apperror.NotFound("Domain not found.")
	}
	if !listed {
		return false, apperror.NotFound("Email not found.")
	}

	if _, err := u.users.UpdateFlagsByEmail(ctx, email, userdomain.FlagPatch{Approved: userdomain.Bool(false)}); err != nil {
		return domainDeleted, apperror.Upstream("Failed to sync user record.", err)
	}

	u.publisher.Publish(ctx, events.New(events.EmailRemoved, email, map[string]string{
		"domain":         domain,
		"domain_deleted": fmt.Sprint(domainDeleted),
	}))
	level.Info(u.logger).Log("msg", "email removed", "email", email, "domain_deleted", domainDeleted)
	return domainDeleted, nil
}

func (u *allowlistUsecase) AddDomain(ctx context.Context, raw string) (err error) {
	defer func() { u.metrics.AllowlistOp("add_domain", err) }()

	domain := allowdomain.Normalize(raw)
	if !allowdomain.ValidDomain(domain) {
		return apperror.Validation("Invalid domain format (e.g., 'example.com').")
	}

	var exists bool
	err = u.domains.Mutate(ctx, domain, func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		exists = cur != nil
		if exists {
			return nil, false, nil
		}
		return &allowdomain.DomainRecord{Domain: domain, Emails: []string{}}, true, nil
	})
	if err != nil {
		return apperror.Upstream("Failed to manage allowlist.", err)
	}
	if exists {
		return apperror.Conflict("Domain already exists.")
	}

	u.publisher.Publish(ctx, events.New(events.DomainAdded, domain, nil))
	level.Info(u.logger).Log("msg", "domain added", "domain", domain, "generic", allowdomain.IsGenericProvider(domain))
	return nil
}

func (u *allowlistUsecase) RemoveDomain(ctx context.Context, raw string) (err error) {
	defer func() { u.metrics.AllowlistOp("remove_domain", err) }()

	domain := allowdomain.Normalize(raw)
	if !allowdomain.ValidDomain(domain) {
		return apperror.Validation("Invalid domain format (e.g., 'example.com').")
	}

	var found bool
	err = u.domains.Mutate(ctx, domain, func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		found = cur != nil
		return nil, found, nil
	})
	if err != nil {
		return apperror.Upstream("Failed to manage allowlist.", err)
	}
	if !found {
		return apperror.NotFound("Domain not found.")
	}

	u.publisher.Publish(ctx, events.New(events.DomainRemoved, domain, nil))
	level.Info(u.logger).Log("msg", "domain removed", "domain", domain)
	return nil
}

func (u *allowlistUsecase) SyncOnLogin(ctx context.Context, uid, raw string) (*userdomain.UserProfile, error) {
	email := allowdomain.Normalize(raw)
	if uid == "" || email == "" {
		return nil, apperror.Validation("Missing email.")
	}

	approved, err := u.policy.IsApproved(ctx, email)
	if err != nil {
		return nil, apperror.Upstream("Unable to sync user.", err)
	}

	profile, err := u.users.UpsertLogin(ctx, userrepo.LoginSync{
		UID:      uid,
		Email:    email,
		Approved: approved,
		At:       u.now().UTC(),
	})
	if err != nil {
		return nil, apperror.Upstream("Unable to sync user.", err)
	}

	if approved {
		u.recordVisibility(ctx, email)
	}

	u.publisher.Publish(ctx, events.New(events.UserSynced, email, map[string]string{
		"uid":      uid,
		"approved": fmt.Sprint(approved),
	}))
	return profile, nil
}

// recordVisibility lists an approved address on its domain record so admins
// see it. Failures are logged only.
func (u *allowlistUsecase) recordVisibility(ctx context.Context, email string) {
	domain, ok := allowdomain.DomainOf(email)
	if !ok {
		return
	}
	err := u.domains.Mutate(ctx, domain, func(cur *allowdomain.DomainRecord) (*allowdomain.DomainRecord, bool, error) {
		if cur == nil {
			return &allowdomain.DomainRecord{Domain: domain, Emails: []string{email}}, true, nil
		}
		return cur, cur.AddEmail(email), nil
	})
	if err != nil {
		level.Warn(u.logger).Log("msg", "failed to record approved email on domain", "email", email, "err", err)
	}
}

func (u *allowlistUsecase) List(ctx context.Context) ([]dto.DomainView, error) {
	records, err := u.domains.List(ctx)
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch allowlist.", err)
	}
	profiles, err := u.users.List(ctx)
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch allowlist.", err)
	}

	byEmail := make(map[string]*userdomain.UserProfile, len(profiles))
	for _, p := range profiles {
		if _, seen := byEmail[p.Email]; !seen {
			byEmail[p.Email] = p
		}
	}

	views := make([]dto.DomainView, 0, len(records))
	for _, rec := range records {
		view := dto.DomainView{ID: rec.Domain, Domain: rec.Domain, Emails: make([]dto.EmailView, 0, len(rec.Emails))}
		for _, email := range rec.Emails {
			ev := dto.EmailView{Email: email, Subscribed: userdomain.DefaultSubscribed}
			if p, ok := byEmail[email]; ok {
				ev.Subscribed = p.IsSubscribed()
				ev.LastLogin = timePtr(p.LastLogin)
				ev.CreatedAt = timePtr(p.CreatedAt)
			}
			view.Emails = append(view.Emails, ev)
		}
		views = append(views, view)
	}
	return views, nil
}

func (u *allowlistUsecase) ListedEmails(ctx context.Context) ([]string, error) {
	records, err := u.domains.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range records {
		for _, raw := range rec.Emails {
			email := allowdomain.Normalize(raw)
			if _, ok := allowdomain.DomainOf(email); !ok {
				continue
			}
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			out = append(out, email)
		}
	}
	return out, nil
}

func (u *allowlistUsecase) notifyWelcome(ctx context.Context, email string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyWelcome(ctx, email); err != nil {
		level.Warn(u.logger).Log("msg", "welcome email not scheduled", "email", email, "err", err)
	}
}

func parseEmail(raw string) (email, domain string, err error) {
	email = allowdomain.Normalize(raw)
	if !allowdomain.ValidEmail(email) {
		return "", "", apperror.Validation("Invalid email format.")
	}
	domain, _ = allowdomain.DomainOf(email)
	return email, domain, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
