package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"armada/internal/domain"
	"armada/internal/engine"
)

func registerRekaps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-rekap",
		Method:        http.MethodPost,
		Path:          "/rekaps",
		Summary:       "Create an aggregate report",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body RekapRequest `json:"body"`
	}) (*struct {
		Body domain.Rekap `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in := engine.RekapInput{
			PeriodType: domain.PeriodType(input.Body.PeriodType),
			StartDate:  input.Body.StartDate,
			EndDate:    input.Body.EndDate,
		}
		if input.Body.VehicleCategory != nil {
			c := domain.VehicleCategory(*input.Body.VehicleCategory)
			in.VehicleCategory = &c
		}
		rk, err := e.CreateRekap(ctx, actor, in)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rekap `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rekaps",
		Method:      http.MethodGet,
		Path:        "/rekaps",
		Summary:     "List aggregate reports",
	}, func(ctx context.Context, input *struct {
		IsRead string `query:"is_read" enum:"true,false"`
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Rekap `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var isRead *bool
		if input.IsRead != "" {
			v := input.IsRead == "true"
			isRead = &v
		}
		items, err := e.ListRekaps(ctx, actor, isRead, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Rekap `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-rekap-read",
		Method:      http.MethodPost,
		Path:        "/rekaps/{rekap_id}/read",
		Summary:     "Mark a report as read",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		RekapID string `path:"rekap_id"`
	}) (*struct {
		Body domain.Rekap `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rk, err := e.MarkRekapRead(ctx, actor, input.RekapID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rekap `json:"body"`
		}{Body: rk}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/inspections/{inspection_id}/comments",
		Summary:       "Append a comment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string         `path:"inspection_id"`
		Body         CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Komentar `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, err := e.AddComment(ctx, actor, input.InspectionID, input.Body.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Komentar `json:"body"`
		}{Body: k}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/inspections/{inspection_id}/comments",
		Summary:     "Comment log",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InspectionID string `path:"inspection_id"`
	}) (*struct {
		Body []domain.Komentar `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListComments(ctx, actor, input.InspectionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Komentar `json:"body"`
		}{Body: items}, nil
	})
}
