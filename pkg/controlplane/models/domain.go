package models

import (
	"fmt"
	"strings"
	"time"
)

// Domain is a mail domain hosted by the service.
type Domain struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Quota     int       `gorm:"default:0" json:"quota"` // MB, 0 = unlimited
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Domain.
func (Domain) TableName() string {
	return "domains"
}

// ObjectRef returns the grant target reference of the domain.
func (d *Domain) ObjectRef() ObjectRef {
	return ObjectRef{Type: ObjectTypeDomain, ID: d.ID}
}

// ObjectName returns the domain name.
func (d *Domain) ObjectName() string {
	return d.Name
}

// Validate checks if the domain has a valid configuration.
func (d *Domain) Validate() error {
	if err := validateDomainName(d.Name); err != nil {
		return err
	}
	if d.Quota < 0 {
		return fmt.Errorf("quota must not be negative")
	}
	return nil
}

// DomainAlias makes a secondary domain name deliver to a Domain.
type DomainAlias struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	TargetID  string    `gorm:"not null;size:36;index" json:"target_id"`
	Target    *Domain   `gorm:"foreignKey:TargetID" json:"target,omitempty"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for DomainAlias.
func (DomainAlias) TableName() string {
	return "domain_aliases"
}

// ObjectRef returns the grant target reference of the domain alias.
func (d *DomainAlias) ObjectRef() ObjectRef {
	return ObjectRef{Type: ObjectTypeDomainAlias, ID: d.ID}
}

// ObjectName returns the alias name.
func (d *DomainAlias) ObjectName() string {
	return d.Name
}

// Validate checks if the domain alias has a valid configuration.
func (d *DomainAlias) Validate() error {
	if err := validateDomainName(d.Name); err != nil {
		return err
	}
	if d.TargetID == "" {
		return fmt.Errorf("target domain is required")
	}
	return nil
}

// NormalizeName lowercases and trims a domain or address.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validateDomainName(name string) error {
	if name == "" {
		return fmt.Errorf("domain name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("domain name is too long")
	}
	if !strings.Contains(name, ".") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("invalid domain name %q", name)
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("invalid domain name %q", name)
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
				return fmt.Errorf("invalid domain name %q", name)
			}
		}
	}
	return nil
}
