package server

import (
	"armada/internal/domain"
	"armada/internal/engine"
)

type ActorResponse struct {
	ID   string      `json:"id"`
	Name string      `json:"name,omitempty"`
	Role domain.Role `json:"role"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role" enum:"PETUGAS_LAPANGAN,MANAGER_TRAFFIC,MANAGER_OPERATIONAL"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// InspectionRequest carries the content fields for create and draft-edit.
type InspectionRequest struct {
	VehicleCategory    string             `json:"vehicle_category" enum:"TOW,PLAZA,SECURITY,RESCUE"`
	VehicleNumber      string             `json:"vehicle_number"`
	InspectionLocation string             `json:"inspection_location,omitempty"`
	InspectionDate     string             `json:"inspection_date" format:"date"`
	Documents          domain.Documents   `json:"documents"`
	SpecialData        domain.SpecialData `json:"special_data"`
	EquipmentChecklist map[string]bool    `json:"equipment_checklist,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	Submit             bool               `json:"submit,omitempty"`
}

func (r InspectionRequest) toInput() engine.InspectionInput {
	return engine.InspectionInput{
		VehicleCategory:    domain.VehicleCategory(r.VehicleCategory),
		VehicleNumber:      r.VehicleNumber,
		InspectionLocation: r.InspectionLocation,
		InspectionDate:     r.InspectionDate,
		Documents:          r.Documents,
		Special:            r.SpecialData,
		EquipmentChecklist: r.EquipmentChecklist,
		Notes:              r.Notes,
		Submit:             r.Submit,
	}
}

type ApproveRequest struct {
	Signature *string `json:"signature,omitempty"`
}

type RejectRequest struct {
	Note string `json:"note"`
}

type AttachPDFRequest struct {
	Reference string `json:"reference"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

// RekapRequest may carry a receiver hint; it is ignored and the rekap is
// always addressed to operational managers.
type RekapRequest struct {
	PeriodType      string  `json:"period_type" enum:"WEEKLY,MONTHLY,YEARLY,CUSTOM"`
	StartDate       string  `json:"start_date" format:"date"`
	EndDate         string  `json:"end_date" format:"date"`
	VehicleCategory *string `json:"vehicle_category,omitempty" enum:"TOW,PLAZA,SECURITY,RESCUE"`
	ReceiverRole    string  `json:"receiver_role,omitempty"`
}

type InspectionListResponse struct {
	Items      []domain.Inspection `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}
