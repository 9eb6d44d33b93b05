package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
)

// MaxTTL bounds the lifetime of a development operator token.
const MaxTTL = 24 * time.Hour

// Operator describes the console operator a development token is minted for.
type Operator struct {
	ProjectID string // Firebase project id; used for aud and iss
	UserID    string // stamped as approvedBy on approvals
	Email     string
	Name      string
	Roles     []string      // defaults to admin, the role the provisioning API requires
	TTL       time.Duration // defaults to 1h
}

func (o Operator) validate() error {
	switch {
	case strings.TrimSpace(o.ProjectID) == "":
		return errors.New("project id is required")
	case strings.TrimSpace(o.UserID) == "":
		return errors.New("user id is required")
	case strings.TrimSpace(o.Email) == "":
		return errors.New("email is required")
	case o.TTL < 0 || o.TTL > MaxTTL:
		return fmt.Errorf("ttl must be between 0 and %s", MaxTTL)
	}
	for _, role := range o.Roles {
		if strings.TrimSpace(role) == "" {
			return errors.New("roles must not be blank")
		}
	}
	return nil
}

// Mint returns an unsigned (alg "none") JWT shaped like a Firebase ID token. It is accepted only
// when the API runs with AUTH_PROVIDER=dev.
func Mint(op Operator, now time.Time) (string, error) {
	if err := op.validate(); err != nil {
		return "", err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := op.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	roles := op.Roles
	if len(roles) == 0 {
		roles = []string{platformauth.RoleAdmin}
	}

	payload := map[string]interface{}{
		"iss":            "https://securetoken.google.com/" + op.ProjectID,
		"aud":            op.ProjectID,
		"uid":            op.UserID,
		"sub":            op.UserID,
		"auth_time":      now.Unix(),
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
		"email":          op.Email,
		"email_verified": true,
		"roles":          roles,
		"firebase": map[string]interface{}{
			"identities":       map[string]interface{}{"email": []string{op.Email}},
			"sign_in_provider": "password",
		},
	}
	if op.Name != "" {
		payload["name"] = op.Name
	}

	headerSegment, err := encodeSegment(map[string]string{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}
	return headerSegment + "." + payloadSegment, nil
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
