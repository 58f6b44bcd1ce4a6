package models

import "time"

// Identity providers a user record can be bound to.
const (
	ProviderKeycloak  = "KEYCLOAK"
	ProviderGoogle    = "GOOGLE"
	ProviderMicrosoft = "MICROSOFT"
)

// Tenant is the isolation boundary every business record belongs to.
type Tenant struct {
	TenantID    string `bson:"tenantId" json:"tenantId"`
	CompanyName string `bson:"companyName" json:"companyName"`
}

// User is the store-of-record user entity.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	ExternalID   string    `bson:"externalId,omitempty" json:"externalId,omitempty"` // IdP subject
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	FirstName    string    `bson:"firstName" json:"firstName"`
	LastName     string    `bson:"lastName" json:"lastName"`
	Role         string    `bson:"role" json:"role"`
	Department   string    `bson:"department,omitempty" json:"department,omitempty"`
	Provider     string    `bson:"provider" json:"provider"`
	Tenant       *Tenant   `bson:"tenant,omitempty" json:"tenant,omitempty"`
	TOTPSecret   string    `bson:"totpSecret,omitempty" json:"-"`
	AccessToken  string    `bson:"accessToken,omitempty" json:"-"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TenantID returns the user's tenant id or "" when unassigned.
func (u *User) TenantID() string {
	if u == nil || u.Tenant == nil {
		return ""
	}
	return u.Tenant.TenantID
}

// Claims are the verified fields the auth pipeline reads from an access token.
type Claims struct {
	Subject    string    `json:"sub"`
	Email      string    `json:"email,omitempty"`
	Username   string    `json:"preferred_username,omitempty"`
	RealmRoles []string  `json:"realmRoles,omitempty"`
	ExpiresAt  time.Time `json:"-"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID     string   `json:"id"`
	ExternalID string   `json:"externalId"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	Role       string   `json:"role"`
	Department string   `json:"department,omitempty"`
	Provider   string   `json:"provider"`
	TenantID   string   `json:"tenantId"`
	Tenant     *Tenant  `json:"tenant,omitempty"`
	RealmRoles []string `json:"realmRoles"`
}

// HasRealmRole is a case-sensitive membership check.
func (p *Principal) HasRealmRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.RealmRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so cached snapshots are never mutated by handlers.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	if p.Tenant != nil {
		t := *p.Tenant
		out.Tenant = &t
	}
	out.RealmRoles = append([]string(nil), p.RealmRoles...)
	return &out
}

// NewPrincipal flattens a user record and its token claims.
func NewPrincipal(u *User, c *Claims) *Principal {
	p := &Principal{
		UserID:     u.ID,
		ExternalID: u.ExternalID,
		Email:      u.Email,
		Username:   u.Username,
		Role:       u.Role,
		Department: u.Department,
		Provider:   u.Provider,
		TenantID:   u.TenantID(),
	}
	if u.Tenant != nil {
		t := *u.Tenant
		p.Tenant = &t
	}
	if c != nil {
		p.RealmRoles = append([]string(nil), c.RealmRoles...)
		if p.ExternalID == "" {
			p.ExternalID = c.Subject
		}
	}
	return p
}
