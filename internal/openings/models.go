// Package openings holds the tenant-scoped job openings vendors submit
// hiring profiles against.
package openings

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusOnHold Status = "ON_HOLD"
	StatusClosed Status = "CLOSED"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrDuplicateKey    = errors.New("profile object key already exists")
)

// Opening is a position published by a tenant's hiring manager.
type Opening struct {
	ID                     string     `json:"id" bson:"_id"`
	TenantID               string     `json:"tenantId" bson:"tenantId"`
	Title                  string     `json:"title" bson:"title"`
	Description            string     `json:"description,omitempty" bson:"description,omitempty"`
	Location               string     `json:"location,omitempty" bson:"location,omitempty"`
	ContractType           string     `json:"contractType,omitempty" bson:"contractType,omitempty"`
	ExperienceMin          int        `json:"experienceMin" bson:"experienceMin"`
	ExperienceMax          int        `json:"experienceMax" bson:"experienceMax"`
	PostedDate             time.Time  `json:"postedDate" bson:"postedDate"`
	ExpectedCompletionDate *time.Time `json:"expectedCompletionDate,omitempty" bson:"expectedCompletionDate,omitempty"`
	Status                 Status     `json:"status" bson:"status"`
	HiringManagerID        string     `json:"hiringManagerId" bson:"hiringManagerId"`
}

// HiringProfile is one uploaded candidate file attached to an opening.
type HiringProfile struct {
	ID         string    `json:"id" bson:"_id"`
	OpeningID  string    `json:"openingId" bson:"openingId"`
	ObjectKey  string    `json:"objectKey" bson:"objectKey"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
	IsDraft    bool      `json:"isDraft" bson:"isDraft"`
	IsDeleted  bool      `json:"-" bson:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// KeyPrefix is the object-key prefix every profile of an opening lives under.
func KeyPrefix(tenantID, openingID string) string {
	return tenantID + "/" + openingID + "/"
}

// ObjectKey builds `<tenant>/<opening>/<unixmillis>_<filename>`.
func ObjectKey(tenantID, openingID string, at time.Time, filename string) string {
	return KeyPrefix(tenantID, openingID) + strconv.FormatInt(at.UnixMilli(), 10) + "_" + filename
}

// FileName strips the key prefix and upload timestamp.
func FileName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.Index(key, "_"); i >= 0 {
		return key[i+1:]
	}
	return key
}
