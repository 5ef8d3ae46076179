package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ActorKind 标识参与者类型，决定从哪张表解析身份
type ActorKind string

const (
	KindEndUser      ActorKind = "EndUser"
	KindSupportAdmin ActorKind = "SupportAdmin"
	KindEmployee     ActorKind = "Employee"
	KindSystem       ActorKind = "System"
)

const (
	RoleUser       = "user"
	RoleEmployee   = "employee"
	RoleEmployer   = "employer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func ParseActorKind(s string) (ActorKind, error) {
	switch ActorKind(s) {
	case KindEndUser, KindSupportAdmin, KindEmployee:
		return ActorKind(s), nil
	}
	return "", fmt.Errorf("unknown actor kind %q", s)
}

// ActorRef is the tagged {kind, id} reference used wherever a sender or
// recipient may be one of several actor kinds.
type ActorRef struct {
	Kind ActorKind `json:"kind"`
	ID   uint      `json:"id"`
}

func (r ActorRef) String() string {
	return string(r.Kind) + ":" + strconv.FormatUint(uint64(r.ID), 10)
}

// ParseActorRef parses the "<kind>:<id>" form produced by String.
func ParseActorRef(s string) (ActorRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ActorRef{}, fmt.Errorf("malformed actor ref %q", s)
	}
	k, err := ParseActorKind(kind)
	if err != nil {
		return ActorRef{}, err
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ActorRef{}, fmt.Errorf("malformed actor id %q: %w", id, err)
	}
	return ActorRef{Kind: k, ID: uint(n)}, nil
}

// Actor is a resolved identity: reference plus role and company scope.
type Actor struct {
	Ref       ActorRef `json:"ref"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Role      string   `json:"role"`
	CompanyID *uint    `json:"company_id,omitempty"`
}

func (a *Actor) IsSupportAdmin() bool {
	return a.Ref.Kind == KindSupportAdmin && (a.Role == RoleAdmin || a.Role == RoleSuperAdmin)
}

// IsCompanyScoped reports whether the actor belongs to a company.
func (a *Actor) IsCompanyScoped() bool {
	return a.Ref.Kind != KindSupportAdmin && a.CompanyID != nil
}
