package domain

type Role string

const (
	RolePetugasLapangan    Role = "PETUGAS_LAPANGAN"
	RoleManagerTraffic     Role = "MANAGER_TRAFFIC"
	RoleManagerOperational Role = "MANAGER_OPERATIONAL"
)

func (r Role) IsValid() bool {
	switch r {
	case RolePetugasLapangan, RoleManagerTraffic, RoleManagerOperational:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusSubmitted             Status = "SUBMITTED"
	StatusApprovedByTraffic     Status = "APPROVED_BY_TRAFFIC"
	StatusApprovedByOperational Status = "APPROVED_BY_OPERATIONAL"
	StatusRejected              Status = "REJECTED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApprovedByTraffic, StatusApprovedByOperational, StatusRejected:
		return true
	}
	return false
}

type VehicleCategory string

const (
	CategoryTow      VehicleCategory = "TOW"
	CategoryPlaza    VehicleCategory = "PLAZA"
	CategorySecurity VehicleCategory = "SECURITY"
	CategoryRescue   VehicleCategory = "RESCUE"
)

func (c VehicleCategory) IsValid() bool {
	switch c {
	case CategoryTow, CategoryPlaza, CategorySecurity, CategoryRescue:
		return true
	}
	return false
}

type RejectionStage string

const (
	StageTraffic     RejectionStage = "TRAFFIC"
	StageOperational RejectionStage = "OPERATIONAL"
)

type PeriodType string

const (
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
	PeriodYearly  PeriodType = "YEARLY"
	PeriodCustom  PeriodType = "CUSTOM"
)

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// DocumentValidity tracks one vehicle document: when it expires and the
// photo evidence captured during inspection.
type DocumentValidity struct {
	ValidUntil *string `json:"valid_until,omitempty" format:"date"`
	PhotoRef   *string `json:"photo_ref,omitempty"`
}

type Documents struct {
	STNK    DocumentValidity `json:"stnk"`
	KIR     DocumentValidity `json:"kir"`
	Tax     DocumentValidity `json:"tax"`
	Service DocumentValidity `json:"service"`
}

type TowDetails struct {
	TowCapacityKg    *int   `json:"tow_capacity_kg,omitempty"`
	CraneCondition   string `json:"crane_condition,omitempty"`
	WinchCondition   string `json:"winch_condition,omitempty"`
	FlatbedCondition string `json:"flatbed_condition,omitempty"`
}

type PlazaDetails struct {
	PatrolRouteCode   string `json:"patrol_route_code,omitempty"`
	RadioCondition    string `json:"radio_condition,omitempty"`
	BeaconCondition   string `json:"beacon_condition,omitempty"`
	ConeStockComplete *bool  `json:"cone_stock_complete,omitempty"`
}

type SecurityDetails struct {
	RadioCondition          string `json:"radio_condition,omitempty"`
	SirenCondition          string `json:"siren_condition,omitempty"`
	EmergencyLightCondition string `json:"emergency_light_condition,omitempty"`
}

type RescueDetails struct {
	MedicalKitComplete    *bool  `json:"medical_kit_complete,omitempty"`
	StretcherCondition    string `json:"stretcher_condition,omitempty"`
	OxygenTankPressureBar *int   `json:"oxygen_tank_pressure_bar,omitempty"`
	HydraulicCutter       string `json:"hydraulic_cutter,omitempty"`
}

// SpecialData is a tagged variant keyed by vehicle category. Only the
// variant matching the inspection's category may be set; Extra holds
// genuinely free-form metadata.
type SpecialData struct {
	Tow      *TowDetails      `json:"tow,omitempty"`
	Plaza    *PlazaDetails    `json:"plaza,omitempty"`
	Security *SecurityDetails `json:"security,omitempty"`
	Rescue   *RescueDetails   `json:"rescue,omitempty"`
	Extra    map[string]any   `json:"extra,omitempty"`
}

type Inspection struct {
	ID                      string          `json:"id"`
	OwnerID                 string          `json:"owner_id"`
	OwnerName               string          `json:"owner_name,omitempty"`
	VehicleCategory         VehicleCategory `json:"vehicle_category" enum:"TOW,PLAZA,SECURITY,RESCUE"`
	VehicleNumber           string          `json:"vehicle_number"`
	InspectionLocation      string          `json:"inspection_location,omitempty"`
	InspectionDate          string          `json:"inspection_date" format:"date"`
	Documents               Documents       `json:"documents"`
	Special                 SpecialData     `json:"special_data"`
	EquipmentChecklist      map[string]bool `json:"equipment_checklist,omitempty"`
	Notes                   string          `json:"notes,omitempty"`
	Status                  Status          `json:"status" enum:"DRAFT,SUBMITTED,APPROVED_BY_TRAFFIC,APPROVED_BY_OPERATIONAL,REJECTED"`
	NeedsApproval           bool            `json:"needs_approval"`
	ApprovedByTrafficID     *string         `json:"approved_by_traffic_id,omitempty"`
	ApprovedAtTraffic       *string         `json:"approved_at_traffic,omitempty" format:"date-time"`
	TrafficSignature        *string         `json:"traffic_signature,omitempty"`
	ApprovedByOperationalID *string         `json:"approved_by_operational_id,omitempty"`
	ApprovedAtOperational   *string         `json:"approved_at_operational,omitempty" format:"date-time"`
	OperationalSignature    *string         `json:"operational_signature,omitempty"`
	RejectionNote           *string         `json:"rejection_note,omitempty"`
	RejectedByStage         *RejectionStage `json:"rejected_by_stage,omitempty" enum:"TRAFFIC,OPERATIONAL"`
	RejectedAt              *string         `json:"rejected_at,omitempty" format:"date-time"`
	PDFReference            *string         `json:"pdf_reference,omitempty"`
	PDFGeneratedAt          *string         `json:"pdf_generated_at,omitempty" format:"date-time"`
	CreatedAt               string          `json:"created_at" format:"date-time"`
	UpdatedAt               string          `json:"updated_at" format:"date-time"`
}

type Komentar struct {
	ID           string `json:"id"`
	InspectionID string `json:"inspection_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	SenderRole   Role   `json:"sender_role"`
	Body         string `json:"body"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Rekap struct {
	ID               string           `json:"id"`
	PeriodType       PeriodType       `json:"period_type" enum:"WEEKLY,MONTHLY,YEARLY,CUSTOM"`
	StartDate        string           `json:"start_date" format:"date"`
	EndDate          string           `json:"end_date" format:"date"`
	VehicleCategory  *VehicleCategory `json:"vehicle_category,omitempty"`
	TotalInspections int              `json:"total_inspections"`
	Statistics       map[string]int   `json:"statistics"`
	SenderID         string           `json:"sender_id"`
	SenderName       string           `json:"sender_name,omitempty"`
	ReceiverRole     Role             `json:"receiver_role"`
	IsRead           bool             `json:"is_read"`
	ReadAt           *string          `json:"read_at,omitempty" format:"date-time"`
	CreatedAt        string           `json:"created_at" format:"date-time"`
}

type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	InspectionID string `json:"inspection_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}
