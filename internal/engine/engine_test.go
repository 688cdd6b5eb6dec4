package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"armada/internal/config"
	"armada/internal/db"
	"armada/internal/domain"
	"armada/internal/engine"
	"armada/internal/engine/auth"
	"armada/internal/migrate"
	"armada/internal/repo"
)

var (
	officer      = auth.Actor{ID: "officer-1", Name: "Budi", Role: domain.RolePetugasLapangan}
	otherOfficer = auth.Actor{ID: "officer-2", Name: "Sari", Role: domain.RolePetugasLapangan}
	trafficMgr   = auth.Actor{ID: "mgr-traffic", Name: "Andi", Role: domain.RoleManagerTraffic}
	opsMgr       = auth.Actor{ID: "mgr-ops", Name: "Dewi", Role: domain.RoleManagerOperational}
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	clock  *fakeClock
}

// fakeClock advances one second per reading so timestamp ordering is
// observable in tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := &fakeClock{t: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
	eng := engine.New(conn, config.Default("test"))
	eng.Now = clock.Now
	return testEnv{Engine: eng, Ctx: context.Background(), clock: clock}
}

func towInput(number string) engine.InspectionInput {
	capacity := 5000
	return engine.InspectionInput{
		VehicleCategory:    domain.CategoryTow,
		VehicleNumber:      number,
		InspectionLocation: "KM 42",
		InspectionDate:     "2024-03-10",
		Special: domain.SpecialData{
			Tow: &domain.TowDetails{TowCapacityKg: &capacity, CraneCondition: "good"},
		},
		Notes: "routine check",
	}
}

func (env testEnv) submitted(t *testing.T, number string) domain.Inspection {
	t.Helper()
	in := towInput(number)
	in.Submit = true
	ins, err := env.Engine.CreateInspection(env.Ctx, officer, in)
	if err != nil {
		t.Fatalf("create submitted inspection: %v", err)
	}
	return ins
}

func (env testEnv) fullyApproved(t *testing.T, number string) domain.Inspection {
	t.Helper()
	ins := env.submitted(t, number)
	if _, err := env.Engine.ApproveTraffic(env.Ctx, trafficMgr, ins.ID, nil); err != nil {
		t.Fatalf("approve traffic: %v", err)
	}
	approved, err := env.Engine.ApproveOperational(env.Ctx, opsMgr, ins.ID, nil)
	if err != nil {
		t.Fatalf("approve operational: %v", err)
	}
	return approved
}

func isPrecondition(err error) bool {
	var pe engine.PreconditionError
	return errors.As(err, &pe)
}

func isForbidden(err error) bool {
	var fe auth.ForbiddenError
	return errors.As(err, &fe)
}

func isOwnership(err error) bool {
	var oe auth.OwnershipError
	return errors.As(err, &oe)
}

func TestApprovalWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ins, err := env.Engine.CreateInspection(env.Ctx, officer, towInput("B 1234 XY"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ins.Status != domain.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", ins.Status)
	}
	if ins.NeedsApproval {
		t.Fatalf("draft should not need approval")
	}

	in := towInput("B 1234 XY")
	in.Submit = true
	ins, err = env.Engine.UpdateDraft(env.Ctx, officer, ins.ID, in)
	if err != nil {
		t.Fatalf("submit draft: %v", err)
	}
	if ins.Status != domain.StatusSubmitted || !ins.NeedsApproval {
		t.Fatalf("expected SUBMITTED awaiting approval, got %s", ins.Status)
	}

	sig := "andi-signature"
	ins, err = env.Engine.ApproveTraffic(env.Ctx, trafficMgr, ins.ID, &sig)
	if err != nil {
		t.Fatalf("approve traffic: %v", err)
	}
	if ins.Status != domain.StatusApprovedByTraffic {
		t.Fatalf("expected APPROVED_BY_TRAFFIC, got %s", ins.Status)
	}
	if ins.ApprovedByTrafficID == nil || *ins.ApprovedByTrafficID != trafficMgr.ID {
		t.Fatalf("traffic approver not recorded")
	}
	if ins.TrafficSignature == nil || *ins.TrafficSignature != sig {
		t.Fatalf("traffic signature not recorded")
	}

	ins, err = env.Engine.ApproveOperational(env.Ctx, opsMgr, ins.ID, nil)
	if err != nil {
		t.Fatalf("approve operational: %v", err)
	}
	if ins.Status != domain.StatusApprovedByOperational {
		t.Fatalf("expected APPROVED_BY_OPERATIONAL, got %s", ins.Status)
	}
	if ins.ApprovedAtTraffic == nil || ins.ApprovedAtOperational == nil {
		t.Fatalf("approval timestamps missing")
	}
	if *ins.ApprovedAtOperational <= *ins.ApprovedAtTraffic {
		t.Fatalf("operational approval %s should follow traffic approval %s",
			*ins.ApprovedAtOperational, *ins.ApprovedAtTraffic)
	}
}

func TestOperationalApprovalRequiresTrafficFirst(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 2 CD")
	_, err := env.Engine.ApproveOperational(env.Ctx, opsMgr, ins.ID, nil)
	if !isPrecondition(err) {
		t.Fatalf("expected precondition error skipping traffic stage, got %v", err)
	}
}

func TestApprovalRoleGates(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 3 EF")

	if _, err := env.Engine.ApproveTraffic(env.Ctx, officer, ins.ID, nil); !isForbidden(err) {
		t.Fatalf("field officer approving traffic: expected forbidden, got %v", err)
	}
	if _, err := env.Engine.ApproveTraffic(env.Ctx, opsMgr, ins.ID, nil); !isForbidden(err) {
		t.Fatalf("ops manager approving traffic: expected forbidden, got %v", err)
	}
	if _, err := env.Engine.ApproveOperational(env.Ctx, trafficMgr, ins.ID, nil); !isForbidden(err) {
		t.Fatalf("traffic manager approving operational: expected forbidden, got %v", err)
	}
	if _, err := env.Engine.RejectTraffic(env.Ctx, opsMgr, ins.ID, "no"); !isForbidden(err) {
		t.Fatalf("ops manager rejecting: expected forbidden, got %v", err)
	}
	if _, err := env.Engine.CreateInspection(env.Ctx, trafficMgr, towInput("B 9 ZZ")); !isForbidden(err) {
		t.Fatalf("manager creating inspection: expected forbidden, got %v", err)
	}
	if _, err := env.Engine.CreateInspection(env.Ctx, auth.Actor{}, towInput("B 9 ZZ")); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("empty actor: expected unauthenticated, got %v", err)
	}
}

func TestDraftEditGate(t *testing.T) {
	env := newTestEnv(t)
	ins, err := env.Engine.CreateInspection(env.Ctx, officer, towInput("B 4 GH"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// non-owner may not touch the draft, and it stays unchanged
	in := towInput("B 4 GH")
	in.Notes = "tampered"
	_, err = env.Engine.UpdateDraft(env.Ctx, otherOfficer, ins.ID, in)
	if !isOwnership(err) {
		t.Fatalf("expected ownership error, got %v", err)
	}
	got, err := env.Engine.GetInspection(env.Ctx, officer, ins.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Notes != "routine check" {
		t.Fatalf("record changed by rejected edit: %q", got.Notes)
	}

	// owner submits, then the record is frozen for everyone
	in = towInput("B 4 GH")
	in.Submit = true
	if _, err := env.Engine.UpdateDraft(env.Ctx, officer, ins.ID, in); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = env.Engine.UpdateDraft(env.Ctx, officer, ins.ID, towInput("B 4 GH"))
	if !isPrecondition(err) {
		t.Fatalf("expected precondition error editing submitted record, got %v", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	env := newTestEnv(t)
	ins, err := env.Engine.CreateInspection(env.Ctx, officer, towInput("B 5 IJ"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.Engine.DeleteDraft(env.Ctx, otherOfficer, ins.ID); !isOwnership(err) {
		t.Fatalf("expected ownership error deleting someone else's draft, got %v", err)
	}
	if err := env.Engine.DeleteDraft(env.Ctx, officer, ins.ID); err != nil {
		t.Fatalf("delete own draft: %v", err)
	}
	if _, err := env.Engine.GetInspection(env.Ctx, officer, ins.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	sub := env.submitted(t, "B 6 KL")
	if err := env.Engine.DeleteDraft(env.Ctx, officer, sub.ID); !isPrecondition(err) {
		t.Fatalf("expected precondition error deleting submitted record, got %v", err)
	}
}

func TestUnknownIDIsNotFoundBeforeOwnership(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateDraft(env.Ctx, officer, "no-such-id", towInput("B 1 AA"))
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if err := env.Engine.DeleteDraft(env.Ctx, officer, "no-such-id"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestRejectRequiresNote(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 7 MN")
	if _, err := env.Engine.RejectTraffic(env.Ctx, trafficMgr, ins.ID, "   "); !isPrecondition(err) {
		t.Fatalf("expected precondition error for blank note, got %v", err)
	}

	rej, err := env.Engine.RejectTraffic(env.Ctx, trafficMgr, ins.ID, "missing KIR photo")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rej.Status != domain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", rej.Status)
	}
	if rej.RejectionNote == nil || *rej.RejectionNote != "missing KIR photo" {
		t.Fatalf("rejection note not recorded")
	}
	if rej.RejectedByStage == nil || *rej.RejectedByStage != domain.StageTraffic {
		t.Fatalf("rejection stage not recorded")
	}

	// rejected records are terminal
	if _, err := env.Engine.ApproveTraffic(env.Ctx, trafficMgr, ins.ID, nil); !isPrecondition(err) {
		t.Fatalf("expected precondition error approving rejected inspection, got %v", err)
	}
}

func TestRejectAfterTrafficApprovalFails(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 8 OP")
	if _, err := env.Engine.ApproveTraffic(env.Ctx, trafficMgr, ins.ID, nil); err != nil {
		t.Fatalf("approve traffic: %v", err)
	}
	if _, err := env.Engine.RejectTraffic(env.Ctx, trafficMgr, ins.ID, "too late"); !isPrecondition(err) {
		t.Fatalf("expected precondition error rejecting after approval, got %v", err)
	}
}

func TestAttachPDFGate(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 10 QR")
	if _, err := env.Engine.AttachPDF(env.Ctx, opsMgr, ins.ID, "blob:abc"); !isPrecondition(err) {
		t.Fatalf("expected precondition error before full approval, got %v", err)
	}

	approved := env.fullyApproved(t, "B 11 ST")
	got, err := env.Engine.AttachPDF(env.Ctx, opsMgr, approved.ID, "blob:abc")
	if err != nil {
		t.Fatalf("attach pdf: %v", err)
	}
	if got.PDFReference == nil || *got.PDFReference != "blob:abc" {
		t.Fatalf("pdf reference not stored")
	}

	// regeneration overwrites the reference
	got, err = env.Engine.AttachPDF(env.Ctx, opsMgr, approved.ID, "blob:def")
	if err != nil {
		t.Fatalf("re-attach pdf: %v", err)
	}
	if got.PDFReference == nil || *got.PDFReference != "blob:def" {
		t.Fatalf("pdf reference not overwritten")
	}
}

func TestSpecialDataMustMatchCategory(t *testing.T) {
	env := newTestEnv(t)
	in := towInput("B 12 UV")
	in.VehicleCategory = domain.CategoryPlaza
	if _, err := env.Engine.CreateInspection(env.Ctx, officer, in); !isPrecondition(err) {
		t.Fatalf("expected precondition error for mismatched variant")
	}
}

func TestChecklistSeededFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	in := towInput("B 13 WX")
	in.EquipmentChecklist = nil
	ins, err := env.Engine.CreateInspection(env.Ctx, officer, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ins.EquipmentChecklist) == 0 {
		t.Fatalf("expected checklist seeded from TOW template")
	}
	for item, ticked := range ins.EquipmentChecklist {
		if ticked {
			t.Fatalf("seeded item %s should start unticked", item)
		}
	}
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	ins := env.submitted(t, "B 14 YZ")
	if _, err := env.Engine.AddComment(env.Ctx, trafficMgr, ins.ID, "  "); !isPrecondition(err) {
		t.Fatalf("expected precondition error for blank comment, got %v", err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, trafficMgr, ins.ID, "please recheck tires"); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, officer, ins.ID, "done, see photo"); err != nil {
		t.Fatalf("add second comment: %v", err)
	}
	comments, err := env.Engine.ListComments(env.Ctx, opsMgr, ins.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].Body != "please recheck tires" {
		t.Fatalf("comments out of order: %q first", comments[0].Body)
	}
	if comments[0].SenderRole != domain.RoleManagerTraffic {
		t.Fatalf("sender role not recorded")
	}

	if _, err := env.Engine.ListComments(env.Ctx, opsMgr, "missing-id"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown inspection, got %v", err)
	}
}

func TestEventsAppendedAcrossWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ins := env.fullyApproved(t, "B 15 AB")
	events, err := env.Engine.TailEvents(env.Ctx, 50, ins.ID)
	if err != nil {
		t.Fatalf("tail events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range events {
		types[evt.Type] = true
	}
	for _, want := range []string{"inspection.created", "inspection.submitted", "inspection.approved_traffic", "inspection.approved_operational"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}

func TestListInspectionsFilterAndPaging(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.submitted(t, "B 20 PAG")
	}
	if _, err := env.Engine.CreateInspection(env.Ctx, officer, towInput("B 21 DRF")); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	filter := repo.InspectionFilter{Status: string(domain.StatusSubmitted)}
	all, err := env.Engine.ListInspections(env.Ctx, trafficMgr, filter, 10, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 submitted, got %d", len(all))
	}

	page, err := env.Engine.ListInspections(env.Ctx, trafficMgr, filter, 2, "", "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	last := page[len(page)-1]
	rest, err := env.Engine.ListInspections(env.Ctx, trafficMgr, filter, 2, last.CreatedAt, last.ID)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected remaining 1, got %d", len(rest))
	}
	if rest[0].ID == page[0].ID || rest[0].ID == page[1].ID {
		t.Fatalf("pages overlap")
	}
}
