package auth

import (
	"errors"
	"fmt"

	"armada/internal/domain"
)

// Actor is the resolved identity behind a request. Callers pass it into
// every engine operation explicitly.
type Actor struct {
	ID   string
	Name string
	Role domain.Role
}

// ErrUnauthenticated indicates no actor identity could be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// ForbiddenError indicates the actor's role does not allow the operation.
type ForbiddenError struct {
	Operation Operation
	Role      domain.Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s may not perform %s", e.Role, e.Operation)
}

// OwnershipError indicates the actor's role permits the operation but the
// record belongs to someone else.
type OwnershipError struct {
	Operation Operation
}

func (e OwnershipError) Error() string {
	return fmt.Sprintf("only the record owner may perform %s", e.Operation)
}

type Operation string

const (
	OpCreateInspection   Operation = "inspection.create"
	OpEditDraft          Operation = "inspection.edit_draft"
	OpDeleteDraft        Operation = "inspection.delete_draft"
	OpApproveTraffic     Operation = "inspection.approve_traffic"
	OpApproveOperational Operation = "inspection.approve_operational"
	OpRejectTraffic      Operation = "inspection.reject_traffic"
	OpAttachPDF          Operation = "inspection.attach_pdf"
	OpViewInspection     Operation = "inspection.view"
	OpAddComment         Operation = "comment.add"
	OpCreateRekap        Operation = "rekap.create"
	OpMarkRekapRead      Operation = "rekap.mark_read"
	OpListRekaps         Operation = "rekap.list"
)

// permissions is the single place role checks live. Ownership and status
// gates are enforced separately by the engine.
var permissions = map[Operation]map[domain.Role]bool{
	OpCreateInspection:   {domain.RolePetugasLapangan: true},
	OpEditDraft:          {domain.RolePetugasLapangan: true},
	OpDeleteDraft:        {domain.RolePetugasLapangan: true},
	OpApproveTraffic:     {domain.RoleManagerTraffic: true},
	OpApproveOperational: {domain.RoleManagerOperational: true},
	OpRejectTraffic:      {domain.RoleManagerTraffic: true},
	OpAttachPDF:          {domain.RolePetugasLapangan: true, domain.RoleManagerOperational: true},
	OpViewInspection:     {domain.RolePetugasLapangan: true, domain.RoleManagerTraffic: true, domain.RoleManagerOperational: true},
	OpAddComment:         {domain.RolePetugasLapangan: true, domain.RoleManagerTraffic: true, domain.RoleManagerOperational: true},
	OpCreateRekap:        {domain.RolePetugasLapangan: true},
	OpMarkRekapRead:      {domain.RoleManagerTraffic: true, domain.RoleManagerOperational: true},
	OpListRekaps:         {domain.RolePetugasLapangan: true, domain.RoleManagerTraffic: true, domain.RoleManagerOperational: true},
}

// Can reports whether the role is allowed to perform the operation.
func Can(op Operation, role domain.Role) bool {
	return permissions[op][role]
}

// Require returns ErrUnauthenticated for an empty actor and a
// ForbiddenError when the actor's role is not permitted.
func Require(op Operation, actor Actor) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !actor.Role.IsValid() || !Can(op, actor.Role) {
		return ForbiddenError{Operation: op, Role: actor.Role}
	}
	return nil
}
