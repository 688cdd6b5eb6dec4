package server

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"armada/internal/blobstore"
	"armada/internal/domain"
	"armada/internal/engine"
)

// registerReports wires the blob store behind the PDF gate: uploads are
// stored first, then the returned reference goes through the same attach
// path as an externally rendered report.
func registerReports(api huma.API, e engine.Engine, blobs blobstore.Store) {
	if blobs == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "upload-report",
		Method:      http.MethodPost,
		Path:        "/inspections/{inspection_id}/report",
		Summary:     "Upload a rendered report",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		InspectionID string `path:"inspection_id"`
		ContentType  string `header:"Content-Type"`
		RawBody      []byte
	}) (*struct {
		Body domain.Inspection `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "report body required", nil)
		}
		ref, _, err := blobs.Put(ctx, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, handleError(err)
		}
		ins, err := e.AttachPDF(ctx, actor, input.InspectionID, ref)
		if err != nil {
			// The blob is orphaned when the gate refuses the reference.
			_ = blobs.Delete(ctx, ref)
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Inspection `json:"body"`
		}{Body: ins}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "download-report",
		Method:      http.MethodGet,
		Path:        "/inspections/{inspection_id}/report",
		Summary:     "Download the attached report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InspectionID string `path:"inspection_id"`
	}) (*struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ins, err := e.GetInspection(ctx, actor, input.InspectionID)
		if err != nil {
			return nil, handleError(err)
		}
		if ins.PDFReference == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no report attached", nil)
		}
		rc, _, err := blobs.Get(ctx, *ins.PDFReference)
		if err != nil {
			return nil, handleError(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{ContentType: "application/pdf", Body: data}, nil
	})
}
