package models

import "time"

// ObjectType identifies the kind of object a grant targets.
type ObjectType string

const (
	ObjectTypeAccount     ObjectType = "account"
	ObjectTypeDomain      ObjectType = "domain"
	ObjectTypeDomainAlias ObjectType = "domainalias"
	ObjectTypeMailbox     ObjectType = "mailbox"
	ObjectTypeAlias       ObjectType = "alias"
)

// IsValid checks if the object type is known.
func (t ObjectType) IsValid() bool {
	switch t {
	case ObjectTypeAccount, ObjectTypeDomain, ObjectTypeDomainAlias, ObjectTypeMailbox, ObjectTypeAlias:
		return true
	}
	return false
}

// ObjectRef references any object that can be the target of a grant.
type ObjectRef struct {
	Type ObjectType `json:"type"`
	ID   string     `json:"id"`
}

// IsAccount reports whether the reference targets an account.
func (r ObjectRef) IsAccount() bool {
	return r.Type == ObjectTypeAccount
}

// String returns "type:id".
func (r ObjectRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// Object is implemented by every model that can be the target of a grant.
type Object interface {
	ObjectRef() ObjectRef
	ObjectName() string
}

// ObjectAccess grants an account access to an object.
//
// A (account, object) pair is unique. IsOwner marks the grant that records
// who created, and therefore owns, the object.
type ObjectAccess struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID  string     `gorm:"not null;size:36;uniqueIndex:idx_object_access_target,priority:1;index" json:"account_id"`
	ObjectType ObjectType `gorm:"not null;size:20;uniqueIndex:idx_object_access_target,priority:2;index:idx_object_access_object,priority:1" json:"object_type"`
	ObjectID   string     `gorm:"not null;size:36;uniqueIndex:idx_object_access_target,priority:3;index:idx_object_access_object,priority:2" json:"object_id"`
	IsOwner    bool       `gorm:"default:false" json:"is_owner"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ObjectAccess.
func (ObjectAccess) TableName() string {
	return "object_access"
}

// Target returns the reference of the object the grant applies to.
func (o *ObjectAccess) Target() ObjectRef {
	return ObjectRef{Type: o.ObjectType, ID: o.ObjectID}
}
