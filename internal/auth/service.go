package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/model"
	"github.com/iliyamo/wetwo-backend/internal/repository"
)

const (
	msgInvalidCredentials = "invalid email or password"
	appleDisplayName      = "Apple User"
	applePlaceholderEmail = "apple_user_"
)

// UserStore is the account persistence needed by Service.
type UserStore interface {
	CreateWithProfile(ctx context.Context, u model.User, p model.Profile) error
	CreateWithIdentity(ctx context.Context, u model.User, p model.Profile, id model.ExternalIdentity) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityStore resolves external identity links.
type IdentityStore interface {
	FindBySubject(ctx context.Context, subject string) (model.ExternalIdentity, error)
}

// ProfileStore loads profiles returned alongside a session.
type ProfileStore interface {
	Get(ctx context.Context, id string) (model.Profile, error)
}

// Denylist records revoked session token ids.
type Denylist interface {
	Revoke(ctx context.Context, jti, userID string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AppleConfig carries the expected audience and issuer of Apple identity tokens.
type AppleConfig struct {
	Audience string
	Issuer   string
}

// Service implements signup, signin, Apple sign-in and logout.
type Service struct {
	users      UserStore
	identities IdentityStore
	profiles   ProfileStore
	denylist   Denylist
	passwords  *Passwords
	sessions   *SessionManager
	apple      IdentityVerifier
	appleCfg   AppleConfig
	logger     *slog.Logger
	now        func() time.Time
}

// Deps groups the collaborators of Service.
type Deps struct {
	Users      UserStore
	Identities IdentityStore
	Profiles   ProfileStore
	Denylist   Denylist
	Passwords  *Passwords
	Sessions   *SessionManager
	Apple      IdentityVerifier
	AppleCfg   AppleConfig
	Logger     *slog.Logger
}

func NewService(d Deps) *Service {
	if d.Passwords == nil {
		d.Passwords = NewPasswords()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		users:      d.Users,
		identities: d.Identities,
		profiles:   d.Profiles,
		denylist:   d.Denylist,
		passwords:  d.Passwords,
		sessions:   d.Sessions,
		apple:      d.Apple,
		appleCfg:   d.AppleCfg,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// SignupInput is a validated signup request.
type SignupInput struct {
	Email     string
	Password  string
	Name      string
	BirthDate time.Time // zero when not provided
}

// Result is returned by every successful sign-in path.
type Result struct {
	Token   string
	Session Session
	User    model.User
	Profile *model.Profile
}

// Signup creates a password account together with its default profile and
// signs it in. A taken email is a CONFLICT and creates nothing.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Result, error) {
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        repository.NormalizeEmail(in.Email),
		PasswordHash: &hash,
		Name:         strings.TrimSpace(in.Name),
		CreatedAt:    now,
	}
	p := model.NewProfile(u.ID, u.Name, in.BirthDate)

	if err := s.users.CreateWithProfile(ctx, u, p); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Result{}, apperror.Conflict("Email already registered", nil)
		}
		return Result{}, apperror.Internal(err)
	}
	s.logger.Info("user signed up", slog.String("user_id", u.ID))

	return s.issue(u, &p)
}

// Signin verifies email and password. Unknown email, an account without a
// password and a wrong password are indistinguishable to the caller.
func (s *Service) Signin(ctx context.Context, email, password string) (Result, error) {
	u, err := s.users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Result{}, apperror.Internal(err)
	}
	if err != nil || !u.HasPassword() {
		s.passwords.CompareDummy(password)
		return Result{}, apperror.Unauthorized(msgInvalidCredentials)
	}
	if !s.passwords.Compare(*u.PasswordHash, password) {
		return Result{}, apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		s.logger.Warn("update last login failed", slog.String("user_id", u.ID), slog.Any("error", err))
	}
	return s.issue(u, nil)
}

// AppleSignIn verifies an Apple identity token and signs in the linked user,
// creating the account, profile and link on first use.
func (s *Service) AppleSignIn(ctx context.Context, idToken string) (Result, error) {
	ident, err := s.apple.Verify(ctx, idToken, s.appleCfg.Audience, s.appleCfg.Issuer)
	if err != nil {
		return Result{}, err
	}

	u, err := s.linkedUser(ctx, ident.Subject)
	switch {
	case err == nil:
		return s.issueWithProfile(ctx, u)
	case !errors.Is(err, repository.ErrNotFound):
		return Result{}, apperror.Internal(err)
	}

	u, p, err := s.createAppleAccount(ctx, ident)
	if err != nil {
		if !errors.Is(err, repository.ErrIdentityExists) && !errors.Is(err, repository.ErrEmailExists) {
			return Result{}, apperror.Internal(err)
		}
		// Lost a race with a concurrent first sign-in for the same subject.
		winner, lookupErr := s.linkedUser(ctx, ident.Subject)
		if lookupErr != nil {
			return Result{}, apperror.Internal(errors.Join(err, lookupErr))
		}
		return s.issueWithProfile(ctx, winner)
	}
	s.logger.Info("user created via apple sign-in", slog.String("user_id", u.ID))
	return s.issue(u, &p)
}

// createAppleAccount inserts the user, profile and link. An email shared by
// Apple that already belongs to another account is never linked to it; the
// account is created with the placeholder address instead.
func (s *Service) createAppleAccount(ctx context.Context, ident ExternalIdentity) (model.User, model.Profile, error) {
	now := s.now().UTC()
	placeholder := applePlaceholderEmail + ident.Subject

	email := placeholder
	var linkEmail *string
	if ident.Email != "" {
		email = repository.NormalizeEmail(ident.Email)
		linkEmail = &email
	}

	u := model.User{ID: uuid.NewString(), Email: email, Name: appleDisplayName, CreatedAt: now}
	p := model.NewProfile(u.ID, u.Name, time.Time{})
	link := model.ExternalIdentity{
		Subject:   ident.Subject,
		Provider:  model.ProviderApple,
		UserID:    u.ID,
		Email:     linkEmail,
		CreatedAt: now,
	}

	err := s.users.CreateWithIdentity(ctx, u, p, link)
	if errors.Is(err, repository.ErrEmailExists) && email != placeholder {
		u.Email = placeholder
		err = s.users.CreateWithIdentity(ctx, u, p, link)
	}
	return u, p, err
}

func (s *Service) linkedUser(ctx context.Context, subject string) (model.User, error) {
	link, err := s.identities.FindBySubject(ctx, subject)
	if err != nil {
		return model.User{}, err
	}
	return s.users.GetByID(ctx, link.UserID)
}

func (s *Service) issueWithProfile(ctx context.Context, u model.User) (Result, error) {
	var profile *model.Profile
	p, err := s.profiles.Get(ctx, u.ID)
	switch {
	case err == nil:
		profile = &p
	case !errors.Is(err, repository.ErrNotFound):
		return Result{}, apperror.Internal(err)
	}
	return s.issue(u, profile)
}

func (s *Service) issue(u model.User, p *model.Profile) (Result, error) {
	token, session, err := s.sessions.Issue(u.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Token: token, Session: session, User: u, Profile: p}, nil
}

// Logout verifies token and adds it to the denylist until it expires.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Verify(token)
	if err != nil {
		return err
	}
	if session.ID == "" {
		return apperror.Unauthorized("Invalid token").WithReason(ReasonInvalid)
	}
	if err := s.denylist.Revoke(ctx, session.ID, session.Subject, session.ExpiresAt); err != nil {
		return apperror.Internal(err)
	}
	s.logger.Info("session revoked", slog.String("user_id", session.Subject))
	return nil
}

// Authenticate verifies token and checks it against the denylist. It is the
// single check behind the request gate.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	session, err := s.sessions.Verify(token)
	if err != nil {
		return Session{}, err
	}
	if session.ID != "" && s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, session.ID)
		if err != nil {
			return Session{}, apperror.Internal(err)
		}
		if revoked {
			return Session{}, apperror.Unauthorized("Token revoked").WithReason(ReasonInvalid)
		}
	}
	return session, nil
}
