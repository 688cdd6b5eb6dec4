package engine_test

import (
	"errors"
	"testing"

	"armada/internal/domain"
	"armada/internal/engine"
	"armada/internal/repo"
)

func rekapInput(start, end string) engine.RekapInput {
	return engine.RekapInput{
		PeriodType: domain.PeriodCustom,
		StartDate:  start,
		EndDate:    end,
	}
}

func TestRekapCountsApprovedInPeriod(t *testing.T) {
	env := newTestEnv(t)

	// two fully approved, one only traffic-approved, one still submitted
	env.fullyApproved(t, "B 1 AA")
	env.fullyApproved(t, "B 2 BB")
	trafficOnly := env.submitted(t, "B 3 CC")
	if _, err := env.Engine.ApproveTraffic(env.Ctx, trafficMgr, trafficOnly.ID, nil); err != nil {
		t.Fatalf("approve traffic: %v", err)
	}
	env.submitted(t, "B 4 DD")

	rk, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-03-10", "2024-03-10"))
	if err != nil {
		t.Fatalf("create rekap: %v", err)
	}
	// either approval stamp lands the inspection in the period
	if rk.TotalInspections != 3 {
		t.Fatalf("expected 3 approved in period, got %d", rk.TotalInspections)
	}
	if rk.Statistics["TOW"] != 3 {
		t.Fatalf("expected TOW breakdown of 3, got %v", rk.Statistics)
	}
	if rk.ReceiverRole != domain.RoleManagerOperational {
		t.Fatalf("expected receiver MANAGER_OPERATIONAL, got %s", rk.ReceiverRole)
	}
	if rk.IsRead {
		t.Fatalf("new rekap should start unread")
	}

	// a window before any approvals counts nothing
	empty, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-01-01", "2024-01-31"))
	if err != nil {
		t.Fatalf("create empty rekap: %v", err)
	}
	if empty.TotalInspections != 0 {
		t.Fatalf("expected 0 in empty period, got %d", empty.TotalInspections)
	}
}

func TestRekapValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-03-10", "2024-03-01")); !isPrecondition(err) {
		t.Fatalf("expected precondition error for inverted range, got %v", err)
	}
	in := rekapInput("2024-03-01", "2024-03-10")
	in.PeriodType = "FORTNIGHTLY"
	if _, err := env.Engine.CreateRekap(env.Ctx, officer, in); !isPrecondition(err) {
		t.Fatalf("expected precondition error for unknown period type, got %v", err)
	}
	if _, err := env.Engine.CreateRekap(env.Ctx, trafficMgr, rekapInput("2024-03-01", "2024-03-10")); !isForbidden(err) {
		t.Fatalf("expected forbidden for manager creating rekap, got %v", err)
	}
}

func TestRekapCategoryFilter(t *testing.T) {
	env := newTestEnv(t)
	env.fullyApproved(t, "B 5 EE")

	plaza := domain.CategoryPlaza
	in := rekapInput("2024-03-10", "2024-03-10")
	in.VehicleCategory = &plaza
	rk, err := env.Engine.CreateRekap(env.Ctx, officer, in)
	if err != nil {
		t.Fatalf("create rekap: %v", err)
	}
	if rk.TotalInspections != 0 {
		t.Fatalf("expected 0 PLAZA inspections, got %d", rk.TotalInspections)
	}
}

func TestMarkRekapReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.fullyApproved(t, "B 6 FF")
	rk, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-03-10", "2024-03-10"))
	if err != nil {
		t.Fatalf("create rekap: %v", err)
	}

	read, err := env.Engine.MarkRekapRead(env.Ctx, opsMgr, rk.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("expected read with timestamp")
	}
	first := *read.ReadAt

	// the clock keeps advancing, but the original read stamp survives
	again, err := env.Engine.MarkRekapRead(env.Ctx, opsMgr, rk.ID)
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if again.ReadAt == nil || *again.ReadAt != first {
		t.Fatalf("repeat mark-read changed read_at: %v -> %v", first, again.ReadAt)
	}

	if _, err := env.Engine.MarkRekapRead(env.Ctx, officer, rk.ID); !isForbidden(err) {
		t.Fatalf("expected forbidden for field officer marking read, got %v", err)
	}
	if _, err := env.Engine.MarkRekapRead(env.Ctx, opsMgr, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRekapsFiltersUnread(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-03-01", "2024-03-10"))
	if err != nil {
		t.Fatalf("create rekap a: %v", err)
	}
	if _, err := env.Engine.CreateRekap(env.Ctx, officer, rekapInput("2024-02-01", "2024-02-29")); err != nil {
		t.Fatalf("create rekap b: %v", err)
	}
	if _, err := env.Engine.MarkRekapRead(env.Ctx, opsMgr, a.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread := false
	listed, err := env.Engine.ListRekaps(env.Ctx, opsMgr, &unread, 10)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 unread rekap, got %d", len(listed))
	}
	all, err := env.Engine.ListRekaps(env.Ctx, opsMgr, nil, 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rekaps, got %d", len(all))
	}
}
