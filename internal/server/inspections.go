package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"armada/internal/domain"
	"armada/internal/engine"
	"armada/internal/repo"
)

func registerInspections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-inspection",
		Method:        http.MethodPost,
		Path:          "/inspections",
		Summary:       "File an inspection",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body InspectionRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.CreateInspection(ctx, actor, input.Body.toInput())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-inspections",
		Method:      http.MethodGet,
		Path:        "/inspections",
		Summary:     "List inspections",
	}, func(ctx context.Context, input *struct {
		Status          string `query:"status" enum:"DRAFT,SUBMITTED,APPROVED_BY_TRAFFIC,APPROVED_BY_OPERATIONAL,REJECTED"`
		VehicleCategory string `query:"vehicle_category" enum:"TOW,PLAZA,SECURITY,RESCUE"`
		OwnerID         string `query:"owner_id"`
		NeedsApproval   string `query:"needs_approval" enum:"true,false"`
		Limit           int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
		Cursor          string `query:"cursor"`
	}) (*struct {
		Body InspectionListResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		filter := repo.InspectionFilter{
			Status:          input.Status,
			VehicleCategory: input.VehicleCategory,
			OwnerID:         input.OwnerID,
		}
		if input.NeedsApproval != "" {
			v := input.NeedsApproval == "true"
			filter.NeedsApproval = &v
		}
		cursorCreatedAt, cursorID := splitCursor(input.Cursor)
		items, err := e.ListInspections(ctx, actor, filter, input.Limit, cursorCreatedAt, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := InspectionListResponse{Items: items}
		if input.Limit > 0 && len(items) == input.Limit {
			last := items[len(items)-1]
			resp.NextCursor = last.CreatedAt + "|" + last.ID
		}
		return &struct {
			Body InspectionListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-inspection",
		Method:      http.MethodGet,
		Path:        "/inspections/{inspection_id}",
		Summary:     "Get inspection",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InspectionID string `path:"inspection_id"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.GetInspection(ctx, actor, input.InspectionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-draft",
		Method:      http.MethodPut,
		Path:        "/inspections/{inspection_id}/draft",
		Summary:     "Edit a draft, optionally submitting it",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string            `path:"inspection_id"`
		Body         InspectionRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.UpdateDraft(ctx, actor, input.InspectionID, input.Body.toInput())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-draft",
		Method:      http.MethodDelete,
		Path:        "/inspections/{inspection_id}",
		Summary:     "Delete a draft",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string `path:"inspection_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDraft(ctx, actor, input.InspectionID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-traffic",
		Method:      http.MethodPost,
		Path:        "/inspections/{inspection_id}/approve-traffic",
		Summary:     "Traffic manager sign-off",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string         `path:"inspection_id"`
		Body         ApproveRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.ApproveTraffic(ctx, actor, input.InspectionID, input.Body.Signature)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-operational",
		Method:      http.MethodPost,
		Path:        "/inspections/{inspection_id}/approve-operational",
		Summary:     "Operational manager sign-off",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string         `path:"inspection_id"`
		Body         ApproveRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.ApproveOperational(ctx, actor, input.InspectionID, input.Body.Signature)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-traffic",
		Method:      http.MethodPost,
		Path:        "/inspections/{inspection_id}/reject",
		Summary:     "Reject at the traffic stage",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string        `path:"inspection_id"`
		Body         RejectRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.RejectTraffic(ctx, actor, input.InspectionID, input.Body.Note)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-pdf",
		Method:      http.MethodPost,
		Path:        "/inspections/{inspection_id}/pdf",
		Summary:     "Attach a rendered report reference",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string           `path:"inspection_id"`
		Body         AttachPDFRequest `json:"body"`
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.AttachPDF(ctx, actor, input.InspectionID, input.Body.Reference)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})
}

func splitCursor(cursor string) (createdAt, id string) {
	if cursor == "" {
		return "", ""
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
