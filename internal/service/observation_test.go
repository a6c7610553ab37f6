package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

func seedStream(t *testing.T, db *gorm.DB, ws *models.Workspace) *models.Datastream {
	t.Helper()
	ds := models.Datastream{
		WorkspaceID:        &ws.ID,
		ThingID:            uuid.New(),
		SensorID:           uuid.New(),
		ObservedPropertyID: uuid.New(),
		UnitID:             uuid.New(),
		ProcessingLevelID:  uuid.New(),
		Name:               "temp",
	}
	if err := db.Create(&ds).Error; err != nil {
		t.Fatalf("create datastream: %v", err)
	}
	return &ds
}

func rfc3339Points(start time.Time, n int) []ObservationPoint {
	pts := make([]ObservationPoint, n)
	for i := range pts {
		pts[i] = ObservationPoint{
			PhenomenonTime: start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Result:         float64(i),
		}
	}
	return pts
}

func TestObservationAppend(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	n, err := svc.Append(context.Background(), asUser(alice), ds.ID, rfc3339Points(start, 5))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 appended, got %d", n)
	}

	var got models.Datastream
	db.First(&got, "id = ?", ds.ID)
	if got.ValueCount != 5 {
		t.Errorf("expected rollup refreshed, value_count=%d", got.ValueCount)
	}
}

func TestObservationAppend_Validation(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)

	_, err := svc.Append(context.Background(), asUser(alice), ds.ID, nil)
	wantValidation(t, err)

	_, err = svc.Append(context.Background(), asUser(alice), ds.ID, []ObservationPoint{
		{PhenomenonTime: "May 1st, noonish", Result: 1},
	})
	wantValidation(t, err)
}

func TestObservationAppend_DuplicateTimeIsConflict(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Append(context.Background(), asUser(alice), ds.ID, rfc3339Points(start, 3)); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := svc.Append(context.Background(), asUser(alice), ds.ID, rfc3339Points(start.Add(2*time.Minute), 3))
	wantConflict(t, err)
}

func TestObservationAppend_Authorization(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	bob := seedUser(t, db, "bob", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)
	viewer := seedSystemRole(t, db, "viewer", true, true,
		models.RolePermission{PermissionType: "view", ResourceType: "*"})
	seedCollaborator(t, db, bob, ws, viewer)
	pts := rfc3339Points(time.Now().UTC(), 1)

	// No view at all looks like a missing stream.
	if _, err := svc.Append(context.Background(), nil, ds.ID, pts); !errors.Is(err, ErrNotFound) {
		t.Errorf("anonymous append should be ErrNotFound, got %v", err)
	}

	// View without edit is an explicit denial.
	_, err := svc.Append(context.Background(), asUser(bob), ds.ID, pts)
	wantForbidden(t, err)
}

func TestObservationList_Window(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Append(context.Background(), asUser(alice), ds.ID, rfc3339Points(start, 10)); err != nil {
		t.Fatalf("append: %v", err)
	}

	from := start.Add(2 * time.Minute)
	to := start.Add(7 * time.Minute)
	obs, err := svc.List(asUser(alice), ds.ID, &from, &to, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// from inclusive, to exclusive.
	if len(obs) != 5 {
		t.Fatalf("expected 5 observations in window, got %d", len(obs))
	}
	if !obs[0].PhenomenonTime.Equal(from) {
		t.Errorf("expected window to start at %v, got %v", from, obs[0].PhenomenonTime)
	}
	for i := 1; i < len(obs); i++ {
		if !obs[i].PhenomenonTime.After(obs[i-1].PhenomenonTime) {
			t.Fatal("observations out of time order")
		}
	}

	limited, err := svc.List(asUser(alice), ds.ID, nil, nil, 3)
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("expected limit applied, got %d", len(limited))
	}
}

func TestObservationList_StreamHiddenFromStranger(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	bob := seedUser(t, db, "bob", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "private", true)
	ds := seedStream(t, db, ws)

	_, err := svc.List(asUser(bob), ds.ID, nil, nil, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestObservationList_PrivateStreamInPublicWorkspace(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "public", false)
	ds := seedStream(t, db, ws)
	db.Model(&models.Datastream{}).Where("id = ?", ds.ID).Update("is_private", true)

	// The stream's own privacy flag hides it even in a public workspace.
	if _, err := svc.List(nil, ds.ID, nil, nil, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for anonymous, got %v", err)
	}
	if _, err := svc.List(asUser(alice), ds.ID, nil, nil, 0); err != nil {
		t.Errorf("owner list: %v", err)
	}
}

func TestObservationAppend_ResultsRoundTrip(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewObservationService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	ds := seedStream(t, db, ws)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	pts := make([]ObservationPoint, 3)
	for i := range pts {
		pts[i] = ObservationPoint{
			PhenomenonTime: start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			Result:         float64(i) * 1.5,
		}
	}
	if _, err := svc.Append(context.Background(), asUser(alice), ds.ID, pts); err != nil {
		t.Fatalf("append: %v", err)
	}

	obs, err := svc.List(asUser(alice), ds.ID, nil, nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, o := range obs {
		if o.Result != float64(i)*1.5 {
			t.Errorf("observation %d: expected %v, got %v", i, float64(i)*1.5, o.Result)
		}
		if want := start.Add(time.Duration(i) * time.Hour); !o.PhenomenonTime.Equal(want) {
			t.Errorf("observation %d: expected %v, got %v", i, want, o.PhenomenonTime)
		}
	}
}
