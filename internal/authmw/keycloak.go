package authmw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"github.com/google/uuid"
)

// ErrCredentialExists is returned when the provider already holds a
// credential for the email or username.
var ErrCredentialExists = errors.New("credential already exists")

// Keycloak stores credentials in a Keycloak realm, acting through a
// service-account client.
type Keycloak struct {
	Client       *gocloak.GoCloak
	Realm        string
	clientID     string
	clientSecret string
}

func NewKeycloak(baseURL, realm, clientID, clientSecret string) *Keycloak {
	return &Keycloak{
		Client:       gocloak.NewClient(baseURL),
		Realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SelfTest logs the service account in and reads the realm, which fails
// fast on bad credentials or missing permissions.
func (k *Keycloak) SelfTest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	jwt, err := k.loginAdmin(ctx)
	if err != nil {
		return fmt.Errorf("keycloak auth failed: %w", err)
	}

	if _, err = k.Client.GetRealm(ctx, jwt.AccessToken, k.Realm); err != nil {
		return fmt.Errorf("keycloak permission check failed: %w", err)
	}

	return nil
}

func (k *Keycloak) loginAdmin(ctx context.Context) (*gocloak.JWT, error) {
	return k.Client.LoginClient(
		ctx,
		k.clientID,
		k.clientSecret,
		k.Realm,
	)
}

// CreateCredential creates an enabled realm user with a non-temporary
// password and returns the id Keycloak assigned to it.
func (k *Keycloak) CreateCredential(ctx context.Context, email, username, password string) (string, error) {
	jwt, err := k.loginAdmin(ctx)
	if err != nil {
		return "", fmt.Errorf("keycloak service login: %w", err)
	}

	user := gocloak.User{
		Username: gocloak.StringP(username),
		Email:    gocloak.StringP(email),
		Enabled:  gocloak.BoolP(true),
		Credentials: &[]gocloak.CredentialRepresentation{
			{
				Type:      gocloak.StringP("password"),
				Value:     gocloak.StringP(password),
				Temporary: gocloak.BoolP(false),
			},
		},
	}

	id, err := k.Client.CreateUser(ctx, jwt.AccessToken, k.Realm, user)
	if err != nil {
		var apiErr *gocloak.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return "", ErrCredentialExists
		}
		return "", fmt.Errorf("keycloak create user: %w", err)
	}

	return id, nil
}

func (k *Keycloak) DeleteCredential(ctx context.Context, uid string) error {
	jwt, err := k.loginAdmin(ctx)
	if err != nil {
		return fmt.Errorf("keycloak service login: %w", err)
	}

	if err := k.Client.DeleteUser(ctx, jwt.AccessToken, k.Realm, uid); err != nil {
		var apiErr *gocloak.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("keycloak delete user: %w", err)
	}
	return nil
}

// JWKSURL is where the realm publishes its signing keys.
func (k *Keycloak) JWKSURL(baseURL string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", strings.TrimRight(baseURL, "/"), k.Realm)
}

// Issuer is the iss claim of tokens minted by the realm.
func (k *Keycloak) Issuer(baseURL string) string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(baseURL, "/"), k.Realm)
}

// LocalProvider hands out random ids and keeps no credential state. Used
// when no Keycloak is configured; passwords then live only as bcrypt hashes
// in the store.
type LocalProvider struct{}

func (LocalProvider) CreateCredential(context.Context, string, string, string) (string, error) {
	return uuid.NewString(), nil
}

func (LocalProvider) DeleteCredential(context.Context, string) error {
	return nil
}
