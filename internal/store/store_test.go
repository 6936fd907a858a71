package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/teamclock/internal/timer"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	s.now = func() time.Time { return base }
	t.Cleanup(func() { s.Close() })
	return s
}

// newTeam creates a team owned by "owner" with one work type and location.
func newTeam(t *testing.T, s *Store) (*Team, *WorkType, *Location) {
	t.Helper()
	ctx := context.Background()
	team, err := s.CreateTeam(ctx, "Crew", "owner")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	wt, err := s.CreateWorkType(ctx, team.ID, "Tiling", "m2", "")
	if err != nil {
		t.Fatalf("create work type: %v", err)
	}
	loc, err := s.CreateLocation(ctx, team.ID, "Site A")
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	return team, wt, loc
}

// insertEntry is a test helper that stores a stopped pending entry of the
// given net duration starting at start.
func insertEntry(t *testing.T, s *Store, teamID, userID, workTypeID string, start time.Time, durationSecs int64) *timer.TimeEntry {
	t.Helper()
	end := start.Add(time.Duration(durationSecs) * time.Second)
	e := &timer.TimeEntry{
		UserID:     userID,
		TeamID:     teamID,
		WorkTypeID: workTypeID,
		LocationID: "loc",
		StartTime:  start,
		EndTime:    &end,
		Duration:   durationSecs,
		Status:     timer.StatusPending,
	}
	id, err := s.CreateEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	e.ID = id
	return e
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "teamclock.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen; should succeed and not re-migrate.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "teamclock.db" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Teams and members
// ============================================================

func TestCreateTeamMakesOwnerAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team, err := s.CreateTeam(ctx, "  Crew  ", "owner")
	if err != nil {
		t.Fatal(err)
	}
	if team.Name != "Crew" || team.ID == "" {
		t.Fatalf("unexpected team: %+v", team)
	}
	if !team.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", team.CreatedAt, base)
	}
	ok, err := s.IsTeamAdmin(ctx, team.ID, "owner")
	if err != nil || !ok {
		t.Fatalf("owner should be admin: %v %v", ok, err)
	}
}

func TestCreateTeamDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateTeam(ctx, "Crew", "a")
	if _, err := s.CreateTeam(ctx, "Crew", "b"); err == nil {
		t.Fatal("expected error for duplicate team name")
	}
}

func TestCreateTeamRequiresName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateTeam(context.Background(), " ", "a"); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestListTeamsByMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateTeam(ctx, "Alpha", "u1")
	s.CreateTeam(ctx, "Beta", "u2")
	archived, _ := s.CreateTeam(ctx, "Gamma", "u1")
	s.ArchiveTeam(ctx, archived.ID)

	mine, err := s.ListTeams(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Fatalf("expected only Alpha, got %+v", mine)
	}
	all, _ := s.ListTeams(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 active teams, got %d", len(all))
	}
}

func TestRenameTeam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, _ := s.CreateTeam(ctx, "Old", "u1")
	s.RenameTeam(ctx, team.ID, "New")
	got, _ := s.GetTeam(ctx, team.ID)
	if got.Name != "New" {
		t.Fatalf("expected New, got %s", got.Name)
	}
}

func TestMembersAndRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, _ := s.CreateTeam(ctx, "Crew", "owner")

	if err := s.AddMember(ctx, team.ID, "worker", RoleMember); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMember(ctx, team.ID, "worker", "boss"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	members, _ := s.ListMembers(ctx, team.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	if err := s.RequireAdmin(ctx, team.ID, "worker"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	s.AddMember(ctx, team.ID, "worker", RoleAdmin)
	if err := s.RequireAdmin(ctx, team.ID, "worker"); err != nil {
		t.Fatalf("promoted member should be admin: %v", err)
	}

	s.RemoveMember(ctx, team.ID, "worker")
	role, _ := s.MemberRole(ctx, team.ID, "worker")
	if role != "" {
		t.Fatalf("expected no role after removal, got %q", role)
	}
	if err := s.RequireMember(ctx, team.ID, "worker"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if err := s.RequireMember(ctx, team.ID, "owner"); err != nil {
		t.Fatalf("owner should be a member: %v", err)
	}
}

// ============================================================
// Join requests
// ============================================================

func TestJoinRequestApprove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, _ := s.CreateTeam(ctx, "Crew", "owner")

	r, err := s.CreateJoinRequest(ctx, team.ID, "newbie", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RequestPending || r.DecidedAt != nil {
		t.Fatalf("unexpected request: %+v", r)
	}
	if _, err := s.CreateJoinRequest(ctx, team.ID, "newbie", "again"); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}

	if err := s.ApproveJoinRequest(ctx, r.ID, "newbie"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("requester must not approve itself, got %v", err)
	}
	if err := s.ApproveJoinRequest(ctx, r.ID, "owner"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetJoinRequest(ctx, r.ID)
	if got.Status != RequestApproved || got.DecidedBy != "owner" || got.DecidedAt == nil {
		t.Fatalf("unexpected decided request: %+v", got)
	}
	role, _ := s.MemberRole(ctx, team.ID, "newbie")
	if role != RoleMember {
		t.Fatalf("expected member role, got %q", role)
	}
	if err := s.RejectJoinRequest(ctx, r.ID, "owner"); !errors.Is(err, ErrRequestDecided) {
		t.Fatalf("expected ErrRequestDecided, got %v", err)
	}
	if _, err := s.CreateJoinRequest(ctx, team.ID, "newbie", ""); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestJoinRequestReject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, _ := s.CreateTeam(ctx, "Crew", "owner")
	r, _ := s.CreateJoinRequest(ctx, team.ID, "stranger", "")

	if err := s.RejectJoinRequest(ctx, r.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	role, _ := s.MemberRole(ctx, team.ID, "stranger")
	if role != "" {
		t.Fatalf("rejected user should not be a member, got %q", role)
	}
	pending, _ := s.ListJoinRequests(ctx, team.ID, RequestPending)
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %d", len(pending))
	}
	all, _ := s.ListJoinRequests(ctx, team.ID, "")
	if len(all) != 1 || all[0].Status != RequestRejected {
		t.Fatalf("unexpected requests: %+v", all)
	}
}

// ============================================================
// Catalog
// ============================================================

func TestCreateAndListWorkTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, wt, _ := newTeam(t, s)

	if wt.Color != defaultWorkTypeColor || wt.Unit != "m2" {
		t.Fatalf("unexpected work type: %+v", wt)
	}
	if _, err := s.CreateWorkType(ctx, team.ID, "Tiling", "", ""); err == nil {
		t.Fatal("expected error for duplicate name in team")
	}
	s.CreateWorkType(ctx, team.ID, "Grouting", "m", "#FF0000")
	s.ArchiveWorkType(ctx, wt.ID)

	active, _ := s.ListWorkTypes(ctx, team.ID, false)
	if len(active) != 1 || active[0].Name != "Grouting" {
		t.Fatalf("unexpected active work types: %+v", active)
	}
	all, _ := s.ListWorkTypes(ctx, team.ID, true)
	if len(all) != 2 {
		t.Fatalf("expected 2 work types, got %d", len(all))
	}
}

func TestCreateWorkTypeInvalidTeam(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkType(context.Background(), "missing", "X", "", ""); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestLocationsAndNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, wt, loc := newTeam(t, s)
	s.ArchiveLocation(ctx, loc.ID)

	locs, _ := s.ListLocations(ctx, team.ID, false)
	if len(locs) != 0 {
		t.Fatalf("expected archived location hidden, got %d", len(locs))
	}

	names, err := s.LoadNames(ctx, team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if names.WorkTypes[wt.ID] != "Tiling" || names.Units[wt.ID] != "m2" {
		t.Fatalf("unexpected work type names: %+v", names)
	}
	if names.Locations[loc.ID] != "Site A" {
		t.Fatalf("archived location should still resolve, got %+v", names.Locations)
	}
}

// ============================================================
// Time entries
// ============================================================

func TestCreateAndGetEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pause := base.Add(time.Minute)
	amount := 2.5
	in := &timer.TimeEntry{
		UserID:        "u1",
		TeamID:        "t1",
		WorkTypeID:    "wt",
		LocationID:    "loc",
		StartTime:     base,
		PausedTime:    30,
		LastPauseTime: &pause,
		WorkAmount:    &amount,
		Status:        timer.StatusPending,
		DeviceID:      "dev",
	}
	id, err := s.CreateEntry(ctx, in)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEntry(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.State() != timer.StatePaused {
		t.Fatalf("expected paused, got %s", got.State())
	}
	if !got.StartTime.Equal(base) || !got.LastPauseTime.Equal(pause) {
		t.Fatalf("times not round-tripped: %+v", got)
	}
	if got.PausedTime != 30 || *got.WorkAmount != 2.5 || got.DeviceID != "dev" {
		t.Fatalf("fields not round-tripped: %+v", got)
	}
	if !got.CreatedAt.Equal(base) || !got.LastUpdate.Equal(base) {
		t.Fatalf("store should stamp created_at and last_update: %+v", got)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	s := newTestStore(t)
	e, err := s.GetEntry(context.Background(), "missing")
	if err != nil || e != nil {
		t.Fatalf("expected nil, nil; got %v, %v", e, err)
	}
}

func TestUpdateEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertEntry(t, s, "t1", "u1", "wt", base, 600)

	later := base.Add(time.Hour)
	s.now = func() time.Time { return later }
	amount := 4.0
	e.WorkAmount = &amount
	e.Status = timer.StatusCompleted
	if err := s.UpdateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	if !e.LastUpdate.Equal(later) {
		t.Fatalf("last_update not set on caller's entry: %v", e.LastUpdate)
	}

	got, _ := s.GetEntry(ctx, e.ID)
	if got.Status != timer.StatusCompleted || *got.WorkAmount != 4 {
		t.Fatalf("update not stored: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at must not change, got %v", got.CreatedAt)
	}
}

func TestUpdateEntryNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateEntry(context.Background(), &timer.TimeEntry{ID: "missing", StartTime: base})
	if !errors.Is(err, timer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertEntry(t, s, "t1", "u1", "wt", base, 60)

	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetEntry(ctx, e.ID)
	if got != nil {
		t.Fatal("entry should be gone")
	}
	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("deleting a missing entry should not fail: %v", err)
	}
}

func TestQueryEntriesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertEntry(t, s, "t1", "u1", "wt", base, 60)
	insertEntry(t, s, "t1", "u2", "wt", base.Add(time.Hour), 60)
	insertEntry(t, s, "t2", "u1", "wt", base.Add(2*time.Hour), 60)
	open := &timer.TimeEntry{UserID: "u1", TeamID: "t1", WorkTypeID: "wt", LocationID: "loc",
		StartTime: base.Add(3 * time.Hour), IsRunning: true, Status: timer.StatusPending}
	s.CreateEntry(ctx, open)

	tests := []struct {
		name string
		f    timer.EntryFilter
		want int
	}{
		{"all", timer.EntryFilter{}, 4},
		{"user", timer.EntryFilter{UserID: "u1"}, 3},
		{"user and team", timer.EntryFilter{UserID: "u1", TeamID: "t1"}, 2},
		{"open", timer.EntryFilter{UserID: "u1", Open: true}, 1},
		{"running", timer.EntryFilter{IsRunning: ptr(true)}, 1},
		{"not running", timer.EntryFilter{IsRunning: ptr(false)}, 3},
		{"completed", timer.EntryFilter{Status: timer.StatusCompleted}, 0},
		{"from", timer.EntryFilter{From: ptr(base.Add(time.Hour))}, 3},
		{"to", timer.EntryFilter{To: ptr(base.Add(time.Hour))}, 1},
		{"limit", timer.EntryFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryEntries(ctx, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d entries, got %d", tt.want, len(got))
			}
		})
	}

	all, _ := s.QueryEntries(ctx, timer.EntryFilter{})
	for i := 1; i < len(all); i++ {
		if all[i].StartTime.After(all[i-1].StartTime) {
			t.Fatal("entries not ordered newest first")
		}
	}
}

func ptr[T any](v T) *T { return &v }

// ============================================================
// Watch
// ============================================================

func recv(t *testing.T, ch <-chan *timer.TimeEntry) *timer.TimeEntry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch callback")
		return nil
	}
}

func TestWatchEntryUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := insertEntry(t, s, "t1", "u1", "wt", base, 60)

	ch := make(chan *timer.TimeEntry, 4)
	unsubscribe, err := s.WatchEntry(ctx, e.ID, func(e *timer.TimeEntry) { ch <- e })
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	e.DeviceID = "dev-b"
	s.UpdateEntry(ctx, e)
	got := recv(t, ch)
	if got == nil || got.DeviceID != "dev-b" {
		t.Fatalf("expected updated entry, got %+v", got)
	}

	s.DeleteEntry(ctx, e.ID)
	if got := recv(t, ch); got != nil {
		t.Fatalf("expected nil on delete, got %+v", got)
	}
}

func TestWatchEntryUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	e := insertEntry(t, s, "t1", "u1", "wt", base, 60)

	ch := make(chan *timer.TimeEntry, 4)
	s.WatchEntry(ctx, e.ID, func(e *timer.TimeEntry) { ch <- e })
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.watchMu.Lock()
		n := len(s.subs[e.ID])
		s.watchMu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.UpdateEntry(context.Background(), e)
	select {
	case got := <-ch:
		t.Fatalf("unexpected callback after unsubscribe: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================
// Summaries
// ============================================================

func TestGetDailySummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	team, wt, _ := newTeam(t, s)

	a := insertEntry(t, s, team.ID, "u1", wt.ID, base, 600)
	insertEntry(t, s, team.ID, "u1", wt.ID, base.Add(time.Hour), 300)
	insertEntry(t, s, team.ID, "u1", wt.ID, base.Add(24*time.Hour), 120)
	insertEntry(t, s, team.ID, "u2", wt.ID, base, 999)
	amount := 3.0
	a.WorkAmount = &amount
	a.Status = timer.StatusCompleted
	s.UpdateEntry(ctx, a)

	sums, err := s.GetDailySummary(ctx, SummaryFilter{
		TeamID: team.ID,
		UserID: "u1",
		From:   base.Add(-time.Hour),
		To:     base.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 days, got %d: %+v", len(sums), sums)
	}
	first := sums[0]
	if first.Date != "2026-03-02" || first.TotalSeconds != 900 || first.EntryCount != 2 {
		t.Fatalf("unexpected first day: %+v", first)
	}
	if first.TotalAmount != 3 || first.WorkTypeName != "Tiling" || first.Unit != "m2" {
		t.Fatalf("unexpected first day details: %+v", first)
	}
	if sums[1].TotalSeconds != 120 {
		t.Fatalf("unexpected second day: %+v", sums[1])
	}
}

func TestGetDailySummaryExcludesOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateEntry(ctx, &timer.TimeEntry{UserID: "u1", TeamID: "t1", WorkTypeID: "wt", LocationID: "loc",
		StartTime: base, IsRunning: true, Status: timer.StatusPending})

	sums, _ := s.GetDailySummary(ctx, SummaryFilter{From: base.Add(-time.Hour), To: base.Add(time.Hour)})
	if len(sums) != 0 {
		t.Fatalf("open entries must not be summarized, got %+v", sums)
	}
}

func TestGetTodayTotal(t *testing.T) {
	s := newTestStore(t)
	insertEntry(t, s, "t1", "u1", "wt", base, 600)
	insertEntry(t, s, "t1", "u1", "wt", base.Add(-24*time.Hour), 300)
	insertEntry(t, s, "t1", "u2", "wt", base, 300)

	total, err := s.GetTodayTotal(context.Background(), "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 600 {
		t.Fatalf("expected 600, got %d", total)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	defaults := map[string]string{
		"daily_goal":       "28800",
		"week_start":       "monday",
		"purge_mode":       "zero_fill",
		"pending_reminder": "true",
	}
	for k, expected := range defaults {
		val, err := s.GetSetting(ctx, k)
		if err != nil {
			t.Fatalf("GetSetting(%q): %v", k, err)
		}
		if val != expected {
			t.Fatalf("GetSetting(%q) = %q, want %q", k, val, expected)
		}
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetSetting(ctx, "key", "v1")
	s.SetSetting(ctx, "key", "v2")
	val, _ := s.GetSetting(ctx, "key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSetting(context.Background(), "nonexistent"); err == nil {
		t.Fatal("expected error for missing setting")
	}
}

func TestGetAllSettingsSorted(t *testing.T) {
	s := newTestStore(t)
	all, err := s.GetAllSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 4 {
		t.Fatalf("expected at least 4 default settings, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %s >= %s", all[i-1].Key, all[i].Key)
		}
	}
}

func TestDeviceIDStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.DeviceID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}
	second, _ := s.DeviceID(ctx)
	if first != second {
		t.Fatalf("device id changed: %s != %s", first, second)
	}
}

// ============================================================
// Timer machine on SQLite
// ============================================================

func TestMachineRestoreAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamclock.db")
	ctx := context.Background()
	now := base
	clock := func() time.Time { return now }
	session := timer.Session{UserID: "u1", TeamID: "t1", DeviceID: "dev-a"}

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := timer.NewMachine(s, session, timer.WithClock(clock))
	started, err := m.Start(ctx, "wt", "loc")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(100 * time.Second)
	m.Pause(ctx)
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	now = now.Add(time.Hour)
	m2, _ := timer.NewMachine(s2, session, timer.WithClock(clock))
	r, err := m2.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Entry == nil || r.Entry.ID != started.ID {
		t.Fatalf("expected restored entry %s, got %+v", started.ID, r.Entry)
	}
	if r.Elapsed != 100 {
		t.Fatalf("paused entry should show 100s, got %d", r.Elapsed)
	}
	if m2.State() != timer.StatePaused {
		t.Fatalf("expected paused, got %s", m2.State())
	}
}

func TestSessionDeviceIDsDifferPerHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamclock.db")
	ctx := context.Background()
	a, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	install, _ := a.DeviceID(ctx)
	da, err := a.SessionDeviceID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	db, _ := b.SessionDeviceID(ctx)
	if da == db {
		t.Fatalf("two processes share device id %s", da)
	}
	for _, id := range []string{da, db} {
		if !strings.HasPrefix(id, install+"/") {
			t.Fatalf("device id %s does not carry installation id %s", id, install)
		}
	}
}

func TestStopFromOtherProcessSurvivesResync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamclock.db")
	ctx := context.Background()
	now := base
	clock := func() time.Time { return now }

	open := func() (*Store, *timer.Machine) {
		s, err := New(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		dev, err := s.SessionDeviceID(ctx)
		if err != nil {
			t.Fatal(err)
		}
		m, err := timer.NewMachine(s, timer.Session{UserID: "u1", TeamID: "t1", DeviceID: dev}, timer.WithClock(clock))
		if err != nil {
			t.Fatal(err)
		}
		return s, m
	}
	sa, a := open()
	_, b := open()

	started, err := a.Start(ctx, "wt", "loc")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := b.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	stopped, err := b.Stop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r := a.ApplyRemote(stopped.ID, stopped); r == timer.MergeIgnoredEcho {
		t.Fatal("write from another process treated as an echo")
	}

	now = now.Add(5 * time.Second)
	if err := a.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := sa.GetEntry(ctx, started.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndTime == nil || got.IsRunning {
		t.Fatalf("stopped entry reopened: end=%v running=%v", got.EndTime, got.IsRunning)
	}
	if got.Duration != 600 {
		t.Fatalf("duration = %d, want 600", got.Duration)
	}
	if a.State() != timer.StateIdle {
		t.Fatalf("first process state = %s, want idle", a.State())
	}
}

func TestResyncMergesStopWithoutLiveChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamclock.db")
	ctx := context.Background()
	now := base
	clock := func() time.Time { return now }

	sa, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sa.Close()
	sb, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sb.Close()
	da, _ := sa.SessionDeviceID(ctx)
	db, _ := sb.SessionDeviceID(ctx)
	a, _ := timer.NewMachine(sa, timer.Session{UserID: "u1", TeamID: "t1", DeviceID: da}, timer.WithClock(clock))
	b, _ := timer.NewMachine(sb, timer.Session{UserID: "u1", TeamID: "t1", DeviceID: db}, timer.WithClock(clock))

	started, err := a.Start(ctx, "wt", "loc")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	b.Restore(ctx)
	if _, err := b.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	// No watch crosses the two handles; the resync read-back is the only path.
	now = now.Add(5 * time.Second)
	if err := a.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := sa.GetEntry(ctx, started.ID)
	if got.EndTime == nil || got.IsRunning {
		t.Fatalf("stopped entry reopened: end=%v running=%v", got.EndTime, got.IsRunning)
	}
	if a.State() != timer.StateIdle {
		t.Fatalf("state = %s, want idle", a.State())
	}
}

func TestMachineFollowsOtherDevice(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := timer.NewMachine(s, timer.Session{UserID: "u1", TeamID: "t1", DeviceID: "dev-a"},
		timer.WithClock(func() time.Time { return base }))
	b, _ := timer.NewMachine(s, timer.Session{UserID: "u1", TeamID: "t1", DeviceID: "dev-b"},
		timer.WithClock(func() time.Time { return base.Add(10 * time.Second) }))

	if _, err := a.Start(ctx, "wt", "loc"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	go b.Follow(ctx, s)

	// Give Follow a moment to subscribe before the write.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.watchMu.Lock()
		n := len(s.subs)
		s.watchMu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := a.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	for b.State() != timer.StatePaused {
		if time.Now().After(deadline) {
			t.Fatalf("device b never saw the pause, state %s", b.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
