package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestInsert_AssignsIDAndStoresBody(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableCatalog, testExercise{Name: "back_squat", HitCount: 1})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if id != "doc-0001" {
		t.Errorf("id = %q, want doc-0001", id)
	}

	rec, err := s.Get(ctx, TableCatalog, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	var got testExercise
	if err := rec.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got.Name != "back_squat" || got.HitCount != 1 {
		t.Errorf("got %+v", got)
	}
	if rec.Seq != 1 {
		t.Errorf("seq = %d, want 1", rec.Seq)
	}
}

func TestInsert_UnknownTable(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Insert(context.Background(), Table("sessions; DROP TABLE users"), map[string]any{})
	if !errors.Is(err, ErrUnknownTable) {
		t.Errorf("err = %v, want ErrUnknownTable", err)
	}
}

func TestInsert_RejectsNonObject(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Insert(context.Background(), TableUsers, []string{"a"})
	if err == nil {
		t.Error("expected error for non-object document")
	}
}

func TestInsert_DuplicateCatalogName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, TableCatalog, testExercise{Name: "deadlift"}); err != nil {
		t.Fatalf("first Insert() failed: %v", err)
	}
	_, err := s.Insert(ctx, TableCatalog, testExercise{Name: "deadlift"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	recs, err := s.Find(ctx, TableCatalog, Fields{"name": "deadlift"})
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("len(recs) = %d, want 1", len(recs))
	}
}

func TestInsert_DuplicateAchievementPerUserAndType(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := map[string]any{"userId": "u1", "type": "streak_7"}
	if _, err := s.Insert(ctx, TableAchievements, first); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	// Same type for another user is fine.
	if _, err := s.Insert(ctx, TableAchievements, map[string]any{"userId": "u2", "type": "streak_7"}); err != nil {
		t.Fatalf("Insert() for second user failed: %v", err)
	}

	_, err := s.Insert(ctx, TableAchievements, first)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestPatch_MergesFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableCatalog, testExercise{Name: "row", HitCount: 1, Category: "main"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if err := s.Patch(ctx, TableCatalog, id, Fields{"hitCount": 2}); err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}

	rec, err := s.Get(ctx, TableCatalog, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	var got testExercise
	if err := rec.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got.HitCount != 2 || got.Name != "row" || got.Category != "main" {
		t.Errorf("got %+v", got)
	}
}

func TestPatch_NilRemovesField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableUsers, map[string]any{"userId": "u1", "activePlanId": "p1"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if err := s.Patch(ctx, TableUsers, id, Fields{"activePlanId": nil}); err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}

	rec, err := s.Get(ctx, TableUsers, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	var got map[string]any
	if err := rec.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if _, ok := got["activePlanId"]; ok {
		t.Errorf("activePlanId still present: %v", got)
	}
	if got["userId"] != "u1" {
		t.Errorf("userId = %v, want u1", got["userId"])
	}
}

func TestPatch_ReplacesNestedValuesWhole(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TablePlans, map[string]any{
		"userId":  "u1",
		"metrics": map[string]any{"sets": 3, "reps": 10},
		"tags":    []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	err = s.Patch(ctx, TablePlans, id, Fields{
		"metrics": map[string]any{"sets": 5, "note": nil},
		"tags":    []string{"c"},
		"userId":  nil,
		"name":    "Strength",
	})
	if err != nil {
		t.Fatalf("Patch() failed: %v", err)
	}

	rec, err := s.Get(ctx, TablePlans, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	want := `{"metrics":{"sets":5,"note":null},"tags":["c"],"name":"Strength"}`
	if !jsonEqual(t, want, string(rec.Body)) {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}
}

func TestPatch_EmptyFieldsChecksExistence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableUsers, map[string]any{"userId": "u1"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s.Patch(ctx, TableUsers, id, Fields{}); err != nil {
		t.Errorf("Patch() with no fields failed: %v", err)
	}
	if err := s.Patch(ctx, TableUsers, "missing", Fields{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPatch_RejectsQuotedFieldName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TableUsers, map[string]any{"userId": "u1"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s.Patch(ctx, TableUsers, id, Fields{`a"b`: 1}); err == nil {
		t.Error("Patch() with a quoted field name succeeded")
	}
}

func jsonEqual(t *testing.T, a, b string) bool {
	t.Helper()
	var x, y any
	if err := json.Unmarshal([]byte(a), &x); err != nil {
		t.Fatalf("unmarshal %s: %v", a, err)
	}
	if err := json.Unmarshal([]byte(b), &y); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	return reflect.DeepEqual(x, y)
}

func TestPatch_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Patch(context.Background(), TableUsers, "missing", Fields{"x": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, TablePlans, map[string]any{"userId": "u1", "name": "Strength"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s.Delete(ctx, TablePlans, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	_, err = s.Get(ctx, TablePlans, id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete err = %v, want ErrNotFound", err)
	}

	err = s.Delete(ctx, TablePlans, id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() err = %v, want ErrNotFound", err)
	}
}

func TestFind_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	docs := []map[string]any{
		{"userId": "u1", "type": "first_workout"},
		{"userId": "u2", "type": "first_workout"},
		{"userId": "u1", "type": "streak_7"},
	}
	for _, d := range docs {
		if _, err := s.Insert(ctx, TableAchievements, d); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	recs, err := s.Find(ctx, TableAchievements, Fields{"userId": "u1"})
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].ID != "doc-0001" || recs[1].ID != "doc-0003" {
		t.Errorf("order = [%s %s], want [doc-0001 doc-0003]", recs[0].ID, recs[1].ID)
	}

	one, err := s.FindOne(ctx, TableAchievements, Fields{"userId": "u1", "type": "streak_7"})
	if err != nil {
		t.Fatalf("FindOne() failed: %v", err)
	}
	if one.ID != "doc-0003" {
		t.Errorf("FindOne() id = %s, want doc-0003", one.ID)
	}
}

func TestFind_NumericFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, TableStreaks, map[string]any{"userId": "u1", "currentStreak": 7}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	recs, err := s.Find(ctx, TableStreaks, Fields{"currentStreak": 7})
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("len(recs) = %d, want 1", len(recs))
	}
}

func TestFind_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	recs, err := s.Find(context.Background(), TableUsers, Fields{"userId": "nobody"})
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if recs == nil {
		t.Error("Find() returned nil, want empty slice")
	}
}

func TestFindOne_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FindOne(context.Background(), TableUsers, Fields{"userId": "nobody"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFind_RejectsInvalidField(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Find(context.Background(), TableUsers, Fields{"user') OR 1=1 --": "x"})
	if err == nil {
		t.Error("expected error for invalid filter field")
	}
}
