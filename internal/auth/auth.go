package auth

import (
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/crypto/hkdf"

	"github.com/naman-kalwani/auctionit-server/pkg/errors"
)

const sessionCookie = "authjs.session-token"

// Identity is the stable user identity resolved from a credential.
type Identity struct {
	ID    string
	Email string
}

// Verifier resolves Auth.js session credentials issued by the web app. The
// credential is a JWE encrypted with a key derived from the shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) encryptionKey() ([]byte, error) {
	if len(v.secret) == 0 {
		return nil, errors.New(errors.ErrInternalServer, "auth secret not configured")
	}

	salt := sessionCookie
	info := "Auth.js Generated Encryption Key (" + salt + ")"

	// HKDF with SHA-256
	kdf := hkdf.New(sha256.New, v.secret, []byte(salt), []byte(info))

	key := make([]byte, 64)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return key, nil
}

// Verify resolves an opaque credential to an identity, or fails if the
// credential cannot be decrypted, validated, or is expired.
func (v *Verifier) Verify(credential string) (Identity, error) {
	key, err := v.encryptionKey()
	if err != nil {
		return Identity{}, err
	}

	// Decrypt JWE using DIRECT key encryption
	decrypted, err := jwe.Decrypt([]byte(credential), jwe.WithKey(jwa.DIRECT(), key))
	if err != nil {
		return Identity{}, errors.Wrap(err, "failed to decrypt JWE")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(decrypted, &payload); err != nil {
		return Identity{}, errors.Wrap(err, "failed to unmarshal decrypted payload")
	}

	// Re-sign the claims as a JWT so jwx can run its validation over them.
	token := jwt.New()
	for k, val := range payload {
		token.Set(k, val)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), v.secret))
	if err != nil {
		return Identity{}, errors.Wrap(err, "failed to sign JWT")
	}

	verified, err := jwt.Parse(signed,
		jwt.WithKey(jwa.HS256(), v.secret),
		jwt.WithValidate(true))
	if err != nil {
		return Identity{}, errors.Wrap(err, "failed to validate token")
	}

	if exp, ok := verified.Expiration(); ok && exp.Before(time.Now()) {
		return Identity{}, errors.New(errors.ErrInvalidToken, "session token expired")
	}

	id, ok := verified.Subject()
	if !ok {
		return Identity{}, errors.New(errors.ErrInvalidToken, "token has no subject")
	}

	var email string
	if err := verified.Get("email", &email); err != nil {
		return Identity{}, errors.New(errors.ErrInvalidToken, "token has no email claim")
	}

	return Identity{ID: id, Email: email}, nil
}

// FromRequest resolves the identity carried by the session cookie.
func (v *Verifier) FromRequest(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Identity{}, errors.New(errors.ErrInvalidToken, "missing session token cookie")
	}
	return v.Verify(cookie.Value)
}
