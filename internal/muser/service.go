// Package muser is the identity gateway: registration, login, token
// authentication and the admin-only user management endpoints.
package muser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/authz"
	"kyri56xcaesar/taskhub/internal/store"
	"kyri56xcaesar/taskhub/internal/utils"
)

// IdentityProvider owns the credential records. The id it returns becomes
// the user id in the store.
type IdentityProvider interface {
	CreateCredential(ctx context.Context, email, username, password string) (string, error)
	DeleteCredential(ctx context.Context, uid string) error
}

// FederatedVerifier checks tokens minted by an external realm.
type FederatedVerifier interface {
	Verify(token string) (*authmw.KCClaims, error)
}

type Options struct {
	Roles      authz.RoleMap
	BcryptCost int
	// Federated is optional; when set, RS256 tokens are verified with it.
	Federated FederatedVerifier
}

type Service struct {
	users     store.UserStore
	idp       IdentityProvider
	signer    *authmw.Signer
	federated FederatedVerifier
	roles     authz.RoleMap
	cost      int
	now       func() time.Time
}

func NewService(users store.UserStore, idp IdentityProvider, signer *authmw.Signer, opts Options) *Service {
	cost := opts.BcryptCost
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:     users,
		idp:       idp,
		signer:    signer,
		federated: opts.Federated,
		roles:     opts.Roles,
		cost:      cost,
		now:       time.Now,
	}
}

type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UserID    string     `json:"userId"`
	User      store.User `json:"user"`
}

// Register creates the credential, then the user record. A failure to
// persist after the provider call leaves the credential in place.
func (s *Service) Register(ctx context.Context, email, username, password string) (string, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return "", apperr.New(apperr.BadRequest, "email, username and password are required")
	}
	if !utils.IsAlphanumericPlus(username, "._-") {
		return "", apperr.New(apperr.BadRequest, "username may only hold letters, digits, '.', '_' and '-'")
	}

	if err := s.ensureFree(ctx, s.users.FindUserByEmail, email, "email already in use"); err != nil {
		return "", err
	}
	if err := s.ensureFree(ctx, s.users.FindUserByUsername, username, "username already in use"); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.New(apperr.BadRequest, "password too long")
		}
		return "", apperr.Wrap(apperr.Internal, "hash password", err)
	}

	uid, err := s.idp.CreateCredential(ctx, email, username, password)
	if err != nil {
		if errors.Is(err, authmw.ErrCredentialExists) {
			return "", apperr.New(apperr.Conflict, "email or username already in use")
		}
		return "", apperr.Wrap(apperr.Internal, "create credential", err)
	}

	u := store.User{
		ID:           uid,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         s.roles.RoleFor(email),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", apperr.New(apperr.Conflict, "email or username already in use")
		}
		return "", apperr.Wrap(apperr.Internal, "persist user", err)
	}

	log.Info().Str("uid", uid).Str("username", username).Stringer("role", u.Role).Msg("user registered")
	return uid, nil
}

func (s *Service) ensureFree(ctx context.Context, find func(context.Context, string) (store.User, error), value, msg string) error {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return apperr.New(apperr.Conflict, msg)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperr.Wrap(apperr.Internal, "lookup user", err)
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, apperr.New(apperr.BadRequest, "username and password are required")
	}

	u, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apperr.New(apperr.NotFound, "user not found")
		}
		return LoginResult{}, apperr.Wrap(apperr.Internal, "lookup user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, apperr.New(apperr.Unauthorized, "invalid credentials")
	}

	now := s.now().UTC()
	if err := s.users.UpdateUser(ctx, u.ID, store.UserPatch{LastLogin: &now}); err != nil {
		return LoginResult{}, apperr.Wrap(apperr.Internal, "stamp last login", err)
	}
	u.LastLogin = now

	token, exp, err := s.signer.Issue(authz.Claims{
		UID:      u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	})
	if err != nil {
		return LoginResult{}, apperr.Wrap(apperr.Internal, "issue token", err)
	}

	log.Debug().Str("uid", u.ID).Msg("user logged in")
	return LoginResult{Token: token, ExpiresAt: exp, UserID: u.ID, User: u.Public()}, nil
}

// Authenticate implements authmw.Authenticator.
func (s *Service) Authenticate(ctx context.Context, token string) (authz.Claims, error) {
	if token == "" {
		return authz.Claims{}, apperr.New(apperr.Unauthorized, "missing access token")
	}

	if s.federated != nil && authmw.TokenAlg(token) == "RS256" {
		return s.authenticateFederated(ctx, token)
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		log.Debug().Err(err).Msg("token rejected")
		return authz.Claims{}, apperr.Wrap(apperr.Forbidden, "invalid or expired token", err)
	}
	return claims, nil
}

// federated tokens carry no local uid, so they are mapped onto the stored
// user with the same username.
func (s *Service) authenticateFederated(ctx context.Context, token string) (authz.Claims, error) {
	kc, err := s.federated.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("federated token rejected")
		return authz.Claims{}, apperr.Wrap(apperr.Forbidden, "invalid or expired token", err)
	}

	u, err := s.users.FindUserByUsername(ctx, kc.PreferredUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authz.Claims{}, apperr.New(apperr.Forbidden, "unknown user")
		}
		return authz.Claims{}, apperr.Wrap(apperr.Internal, "lookup user", err)
	}
	return authz.Claims{UID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

// LoadSubject reads the current role of uid. A uid without a user record
// is refused.
func LoadSubject(ctx context.Context, users store.UserStore, uid string) (authz.Subject, error) {
	u, err := users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authz.Subject{}, apperr.New(apperr.Forbidden, "user no longer exists")
		}
		return authz.Subject{}, apperr.Wrap(apperr.Internal, "lookup user", err)
	}
	return authz.Subject{UID: u.ID, Role: u.Role}, nil
}

func (s *Service) requireAdmin(ctx context.Context, requesterID string, action authz.Action) error {
	sub, err := LoadSubject(ctx, s.users, requesterID)
	if err != nil {
		return err
	}
	if !authz.Can(sub, action, authz.Resource{}) {
		return apperr.New(apperr.Forbidden, "admin role required")
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, requesterID string) ([]store.User, error) {
	if err := s.requireAdmin(ctx, requesterID, authz.ListUsers); err != nil {
		return nil, err
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list users", err)
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

// UserUpdate holds the editable user fields. Empty strings and nil values
// leave the field unchanged.
type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *int    `json:"role"`
}

func (s *Service) UpdateUser(ctx context.Context, id, requesterID string, upd UserUpdate) error {
	if err := s.requireAdmin(ctx, requesterID, authz.UpdateUser); err != nil {
		return err
	}

	var patch store.UserPatch
	if upd.Username != nil && strings.TrimSpace(*upd.Username) != "" {
		v := strings.TrimSpace(*upd.Username)
		patch.Username = &v
	}
	if upd.Email != nil && strings.TrimSpace(*upd.Email) != "" {
		v := strings.TrimSpace(*upd.Email)
		patch.Email = &v
	}
	if upd.Role != nil {
		role := authz.Role(*upd.Role)
		if !role.Valid() {
			return apperr.New(apperr.BadRequest, "role must be 1, 2 or 3")
		}
		patch.Role = &role
	}

	if _, err := s.users.GetUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return apperr.Wrap(apperr.Internal, "lookup user", err)
	}

	if err := s.users.UpdateUser(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return apperr.New(apperr.Conflict, "username or email already in use")
		case errors.Is(err, store.ErrNotFound):
			return apperr.New(apperr.NotFound, "user not found")
		default:
			return apperr.Wrap(apperr.Internal, "update user", err)
		}
	}

	log.Info().Str("uid", id).Str("by", requesterID).Msg("user updated")
	return nil
}

// DeleteUser drops the user record first, then the provider credential.
func (s *Service) DeleteUser(ctx context.Context, id, requesterID string) error {
	if err := s.requireAdmin(ctx, requesterID, authz.DeleteUser); err != nil {
		return err
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return apperr.Wrap(apperr.Internal, "delete user", err)
	}

	if err := s.idp.DeleteCredential(ctx, id); err != nil {
		return apperr.Wrap(apperr.Internal, "delete credential", err)
	}

	log.Info().Str("uid", id).Str("by", requesterID).Msg("user deleted")
	return nil
}
