package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/utils"

	"gorm.io/gorm"
)

// ProviderResult is the tri-state outcome of one authentication attempt:
// a provider either resolves a Principal, declines because the request
// carries none of its credential kind, or actively fails it.
type ProviderResult int

const (
	ResultOK ProviderResult = iota
	ResultNotApplicable
	ResultFailed
)

// Provider is one entry in the ordered authentication chain: an explicit
// registry of values rather than implicit module-level plugin state.
type Provider interface {
	Authenticate(ctx context.Context, r *http.Request) (*Principal, ProviderResult, error)
	Name() string
}

// Registry holds the ordered provider chain and tries each in turn.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry trying providers in the given order.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Authenticate tries each registered provider in order, returning the first
// Principal resolved, or the failure of the first provider that actively
// rejected a credential it recognized the shape of.
func (r *Registry) Authenticate(ctx context.Context, req *http.Request) (*Principal, error) {
	for _, p := range r.providers {
		principal, result, err := p.Authenticate(ctx, req)
		switch result {
		case ResultOK:
			return principal, nil
		case ResultFailed:
			return nil, err
		case ResultNotApplicable:
			continue
		}
	}
	return nil, consts.ErrAuthenticationFailed
}

// LoadPrincipal resolves a userID into its full authorization subject:
// admin/service flags, system-role general claims, and course roles.
func LoadPrincipal(tx *gorm.DB, userID int) (*Principal, error) {
	var user database.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, consts.ErrNotFound
		}
		return nil, err
	}

	var roleIDs []int
	if err := tx.Model(&database.UserRole{}).
		Where("user_id = ?", userID).
		Pluck("role_id", &roleIDs).Error; err != nil {
		return nil, err
	}

	isAdmin := false
	var claims []Claim
	if len(roleIDs) > 0 {
		var roles []database.Role
		if err := tx.Where("id IN ?", roleIDs).Find(&roles).Error; err != nil {
			return nil, err
		}
		for _, role := range roles {
			if role.Name == consts.RoleAdmin {
				isAdmin = true
			}
		}

		type claimRow struct {
			Action       consts.ActionName
			ResourceName consts.ResourceName
			Allowed      bool
		}
		var rows []claimRow
		if err := tx.Table("role_claims").
			Joins("JOIN permissions ON permissions.id = role_claims.permission_id").
			Joins("JOIN resources ON resources.id = permissions.resource_id").
			Where("role_claims.role_id IN ?", roleIDs).
			Select("permissions.action AS action, resources.name AS resource_name, role_claims.allowed AS allowed").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Allowed {
				claims = append(claims, Claim{Resource: row.ResourceName, Action: row.Action})
			}
		}
	}

	type memberRow struct {
		CourseID int
		Level    int
	}
	var members []memberRow
	if err := tx.Table("course_members").
		Joins("JOIN course_roles ON course_roles.id = course_members.course_role_id").
		Where("course_members.user_id = ? AND course_members.archived_at IS NULL", userID).
		Select("course_members.course_id AS course_id, course_roles.level AS level").
		Scan(&members).Error; err != nil {
		return nil, err
	}

	courseRoles := make(map[int]consts.CourseRoleName, len(members))
	levelToName := make(map[int]consts.CourseRoleName, len(consts.CourseRoleLevel))
	for name, level := range consts.CourseRoleLevel {
		levelToName[level] = name
	}
	for _, m := range members {
		if name, ok := levelToName[m.Level]; ok {
			courseRoles[m.CourseID] = name
		}
	}

	return NewPrincipal(user.ID, isAdmin, user.IsService, claims, courseRoles), nil
}

// LocalPasswordProvider authenticates HTTP Basic credentials against a
// User's Argon2id password hash. It is normally invoked directly by the
// /auth/login handler rather than through the registry chain, since login
// has no prior session; it is still a Provider so the chain can offer it
// uniformly to callers that send Basic auth.
type LocalPasswordProvider struct {
	DB *gorm.DB
}

func (p *LocalPasswordProvider) Name() string { return "local_password" }

func (p *LocalPasswordProvider) Authenticate(ctx context.Context, r *http.Request) (*Principal, ProviderResult, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ResultNotApplicable, nil
	}

	principal, _, err := p.Verify(ctx, username, password)
	if err != nil {
		return nil, ResultFailed, err
	}
	return principal, ResultOK, nil
}

// Verify looks up username and checks password, returning whether the
// stored hash should be transparently upgraded (caller's responsibility).
func (p *LocalPasswordProvider) Verify(ctx context.Context, username, password string) (*Principal, bool, error) {
	var user database.User
	err := p.DB.WithContext(ctx).Where("active_username = ?", username).First(&user).Error
	if err != nil || user.PasswordHash == nil {
		// Constant-shape failure: run a dummy verification so timing does
		// not reveal whether the username exists.
		utils.VerifyPassword(password, dummyHash)
		return nil, false, consts.ErrAuthenticationFailed
	}

	if !utils.VerifyPassword(password, *user.PasswordHash) {
		return nil, false, consts.ErrAuthenticationFailed
	}

	principal, err := LoadPrincipal(p.DB.WithContext(ctx), user.ID)
	if err != nil {
		return nil, false, err
	}
	return principal, utils.NeedsRehash(*user.PasswordHash), nil
}

// dummyHash is verified against on a not-found username so that the failure
// path costs the same wall-clock time as a genuine mismatch.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// APITokenProvider authenticates "Authorization: Bearer ctp_<token>" requests.
type APITokenProvider struct {
	DB *gorm.DB
}

func (p *APITokenProvider) Name() string { return "api_token" }

func (p *APITokenProvider) Authenticate(ctx context.Context, r *http.Request) (*Principal, ProviderResult, error) {
	token, ok := bearerToken(r)
	if !ok || !strings.HasPrefix(token, consts.ApiTokenPrefix) {
		return nil, ResultNotApplicable, nil
	}

	hash := HashAPIToken(token)
	var rec database.ApiToken
	err := p.DB.WithContext(ctx).Where("token_hash = ?", hash).First(&rec).Error
	if err != nil {
		return nil, ResultFailed, consts.ErrAuthenticationFailed
	}
	if !rec.IsUsable(time.Now()) {
		return nil, ResultFailed, consts.ErrTokenRevoked
	}

	p.DB.WithContext(ctx).Model(&rec).Updates(map[string]any{
		"last_seen_at": time.Now(),
	})

	principal, err := LoadPrincipal(p.DB.WithContext(ctx), rec.UserID)
	if err != nil {
		return nil, ResultFailed, err
	}
	return principal, ResultOK, nil
}

// HashAPIToken computes the SHA-256 hex digest stored for an API token.
func HashAPIToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionProvider authenticates a bearer/cookie session token by hash
// lookup against the Session table.
type SessionProvider struct {
	DB *gorm.DB
}

func (p *SessionProvider) Name() string { return "session" }

func (p *SessionProvider) Authenticate(ctx context.Context, r *http.Request) (*Principal, ProviderResult, error) {
	token, ok := bearerToken(r)
	if !ok {
		if cookie, err := r.Cookie("session_token"); err == nil {
			token = cookie.Value
			ok = token != ""
		}
	}
	if !ok {
		return nil, ResultNotApplicable, nil
	}

	hash := HashAPIToken(token)
	var session database.Session
	err := p.DB.WithContext(ctx).Where("session_id_hash = ?", hash).First(&session).Error
	if err != nil {
		return nil, ResultNotApplicable, nil
	}
	if !session.IsActive(time.Now()) {
		return nil, ResultFailed, consts.ErrSessionExpired
	}

	principal, err := LoadPrincipal(p.DB.WithContext(ctx), session.UserID)
	if err != nil {
		return nil, ResultFailed, err
	}
	return principal, ResultOK, nil
}

// SSOVerifier is the narrow extension point external identity providers
// implement; the core never speaks a concrete SSO protocol.
type SSOVerifier interface {
	Verify(ctx context.Context, token string) (provider, providerAccountID string, ok bool, err error)
}

// NoopSSOVerifier declines every token; it documents the extension point
// without committing to a concrete SSO protocol.
type NoopSSOVerifier struct{}

func (NoopSSOVerifier) Verify(ctx context.Context, token string) (string, string, bool, error) {
	return "", "", false, nil
}

// SSOProvider authenticates a bearer token against an external identity
// verifier, mapping the resolved (provider, provider_account_id) pair to an
// existing local Account. A pair with no Account fails with ErrNotFound; no
// Account or User is created.
type SSOProvider struct {
	DB       *gorm.DB
	Verifier SSOVerifier
}

func (p *SSOProvider) Name() string { return "sso" }

func (p *SSOProvider) Authenticate(ctx context.Context, r *http.Request) (*Principal, ProviderResult, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, ResultNotApplicable, nil
	}

	provider, accountID, ok, err := p.Verifier.Verify(ctx, token)
	if err != nil {
		return nil, ResultFailed, err
	}
	if !ok {
		return nil, ResultNotApplicable, nil
	}

	var account database.Account
	err = p.DB.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, accountID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ResultFailed, consts.ErrNotFound
	}
	if err != nil {
		return nil, ResultFailed, err
	}

	principal, err := LoadPrincipal(p.DB.WithContext(ctx), account.UserID)
	if err != nil {
		return nil, ResultFailed, err
	}
	return principal, ResultOK, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token, err := utils.ExtractTokenFromHeader(header)
	if err != nil {
		return "", false
	}
	return token, true
}
