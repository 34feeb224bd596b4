package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// =========================================================================
// REVIEW TESTS
// =========================================================================

func TestReviews_CreateListDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ada", "Ada", "")

	first := &model.ReviewRecord{UserID: u.ID, Kind: model.KindMovie, ItemID: "27205", Rating: 9, Body: "Layers."}
	second := &model.ReviewRecord{UserID: u.ID, Kind: model.KindBook, ItemID: "OL1W", Rating: 7.5, Body: "Sand."}
	for _, r := range []*model.ReviewRecord{first, second} {
		if err := db.CreateReview(ctx, r); err != nil {
			t.Fatalf("CreateReview() error = %v", err)
		}
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids = %q, %q", first.ID, second.ID)
	}

	list, err := db.ListReviews(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("ListReviews() = %+v, want newest first", list)
	}
	if list[0].Rating != 7.5 || list[0].Kind != model.KindBook {
		t.Errorf("round trip = %+v", list[0])
	}

	got, err := db.GetReview(ctx, first.ID)
	if err != nil || got.ItemID != "27205" {
		t.Fatalf("GetReview() = %+v, %v", got, err)
	}

	if err := db.DeleteReview(ctx, first.ID); err != nil {
		t.Fatalf("DeleteReview() error = %v", err)
	}
	if err := db.DeleteReview(ctx, first.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteReview() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// ACTIVITY TESTS
// =========================================================================

func TestActivities_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ada", "Ada", "")

	for _, msg := range []string{"Added book to Read", "Reviewed book"} {
		rec := &model.ActivityRecord{UserID: u.ID, Activity: msg}
		if err := db.AppendActivity(ctx, rec); err != nil {
			t.Fatalf("AppendActivity() error = %v", err)
		}
		if rec.Meta != "{}" {
			t.Errorf("empty Meta stored as %q, want {}", rec.Meta)
		}
	}

	recs, err := db.ListActivities(ctx, u.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Activity != "Reviewed book" {
		t.Errorf("ListActivities() = %+v, want newest first", recs)
	}

	limited, _ := db.ListActivities(ctx, u.ID, repository.ListOptions{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Limit 1 returned %d", len(limited))
	}

	n, err := db.CountActivities(ctx, u.ID)
	if err != nil || n != 2 {
		t.Errorf("CountActivities() = %d, %v; want 2", n, err)
	}
}

func TestDeleteActivitiesForReview(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ada", "Ada", "")

	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: u.ID, Activity: "Reviewed book", Meta: `{"reviewId":"r1","rating":8}`})
	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: u.ID, Activity: "Reviewed book", Meta: `{"reviewId":"r2"}`})
	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: u.ID, Activity: "Added book to Read", Meta: `{"bookId":"OL1W"}`})

	n, err := db.DeleteActivitiesForReview(ctx, u.ID, "r1")
	if err != nil {
		t.Fatalf("DeleteActivitiesForReview() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	recs, _ := db.ListActivities(ctx, u.ID, repository.ListOptions{})
	if len(recs) != 2 {
		t.Errorf("remaining = %d, want 2", len(recs))
	}
}

func TestListActivitiesForUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ada := createTestUser(t, db, "ada", "Ada", "")
	alan := createTestUser(t, db, "alan", "Alan", "")
	grace := createTestUser(t, db, "grace", "Grace", "")

	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: ada.ID, Activity: "first"})
	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: grace.ID, Activity: "hidden"})
	_ = db.AppendActivity(ctx, &model.ActivityRecord{UserID: alan.ID, Activity: "second"})

	recs, err := db.ListActivitiesForUsers(ctx, []string{ada.ID, alan.ID}, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListActivitiesForUsers() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Activity != "second" || recs[1].Activity != "first" {
		t.Errorf("ListActivitiesForUsers() = %+v, want [second first]", recs)
	}

	none, err := db.ListActivitiesForUsers(ctx, nil, repository.ListOptions{})
	if err != nil || len(none) != 0 {
		t.Errorf("no ids = %v, %v; want empty", none, err)
	}
}

// =========================================================================
// SESSION STORE TESTS
// =========================================================================

func TestSessionKV(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Get(ctx, repository.SessionKey); ok || err != nil {
		t.Fatalf("Get(empty) = ok %v, err %v", ok, err)
	}

	if err := db.Set(ctx, repository.SessionKey, `{"version":2}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := db.Set(ctx, repository.SessionKey, `{"version":3}`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	v, ok, err := db.Get(ctx, repository.SessionKey)
	if err != nil || !ok || v != `{"version":3}` {
		t.Fatalf("Get() = %q, %v, %v", v, ok, err)
	}

	_ = db.Set(ctx, repository.LegacyTokenKey, "tok")
	if err := db.Delete(ctx, repository.SessionKey, repository.LegacyTokenKey, "absent"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := db.Get(ctx, repository.LegacyTokenKey); ok {
		t.Error("legacy key survived Delete")
	}
}
