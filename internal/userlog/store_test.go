package userlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	// Pin the clock so every append lands on the same date.
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	s.now = func() time.Time { return fixed }
	return s
}

func mealOf(calories, protein, carbs, fat float64) Entry {
	return Entry{
		"food":     "Fried Rice",
		"calories": calories,
		"protein":  protein,
		"carbs":    carbs,
		"fat":      fat,
	}
}

func TestAppendAccumulatesAndFreezesGoals(t *testing.T) {
	s := newTestStore(t)
	goals := Goals{Calories: 2000, Protein: 150, Carbs: 250, Fat: 70}

	if _, _, err := s.Append("alice", mealOf(500, 30, 60, 15), goals); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	// Different goals on the second append must not take effect.
	log, path, err := s.Append("alice", mealOf(300, 20, 40, 10), Goals{Calories: 9999})
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	if len(log.Meals) != 2 {
		t.Fatalf("meals = %d, want 2", len(log.Meals))
	}
	if log.Meals[0]["calories"] != 500.0 || log.Meals[1]["calories"] != 300.0 {
		t.Fatalf("meals out of append order: %v", log.Meals)
	}
	if log.TotalCalories != 800 || log.TotalProtein != 50 || log.TotalCarbs != 100 || log.TotalFat != 25 {
		t.Fatalf("totals = %v/%v/%v/%v, want 800/50/100/25",
			log.TotalCalories, log.TotalProtein, log.TotalCarbs, log.TotalFat)
	}
	if log.GoalCalories != 2000 || log.GoalProtein != 150 {
		t.Fatalf("goals changed after first write: %+v", log)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file missing at %s: %v", path, err)
	}

	// Re-read from disk, not just the in-memory return value.
	stored, err := s.Get("alice", log.Date)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.TotalCalories != 800 || len(stored.Meals) != 2 {
		t.Fatalf("persisted log = %+v", stored)
	}
}

func TestAppendStripsImageAndGoalFields(t *testing.T) {
	s := newTestStore(t)

	meal := Entry{
		"food":         "Apple Pie",
		"calories":     296.0,
		"image":        "file:///tmp/photo.jpg",
		"goalCalories": 1800.0,
		"GoalProtein":  100.0,
	}
	log, _, err := s.Append("alice", meal, Goals{Calories: 2000})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got := log.Meals[0]
	for _, k := range []string{"image", "goalCalories", "GoalProtein"} {
		if _, ok := got[k]; ok {
			t.Fatalf("field %q should have been stripped: %v", k, got)
		}
	}
	if got["food"] != "Apple Pie" {
		t.Fatalf("food field lost: %v", got)
	}
	if _, ok := got["id"]; !ok {
		t.Fatalf("expected an id stamp, got %v", got)
	}
	if _, ok := got["loggedAt"]; !ok {
		t.Fatalf("expected a loggedAt stamp, got %v", got)
	}
}

func TestAppendMissingNutrientsCountAsZero(t *testing.T) {
	s := newTestStore(t)

	log, _, err := s.Append("alice", Entry{"food": "Boiled Egg", "calories": 78.0}, Goals{})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if log.TotalCalories != 78 || log.TotalProtein != 0 || log.TotalCarbs != 0 || log.TotalFat != 0 {
		t.Fatalf("totals = %+v", log)
	}
}

func TestAppendRejectsPlaceholderUsersBeforeWriting(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	for _, user := range []string{"", "undefined", "null", "  ", "a/b", ".."} {
		_, _, err := s.Append(user, mealOf(1, 1, 1, 1), Goals{})
		if !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("Append(%q) err = %v, want ErrInvalidUser", user, err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected appends still wrote to disk: %v", entries)
	}
}

func TestGetMissingDate(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("alice", "2026-01-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
}

func TestGetAllReturnsEveryDate(t *testing.T) {
	s := newTestStore(t)

	day1 := time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	s.now = func() time.Time { return day1 }
	if _, _, err := s.Append("alice", mealOf(100, 1, 1, 1), Goals{}); err != nil {
		t.Fatalf("Append day1 failed: %v", err)
	}
	s.now = func() time.Time { return day2 }
	if _, _, err := s.Append("alice", mealOf(200, 2, 2, 2), Goals{}); err != nil {
		t.Fatalf("Append day2 failed: %v", err)
	}

	logs, err := s.GetAll("alice")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}

	// Listing order is not guaranteed, so collect by date.
	byDate := map[string]float64{}
	for _, l := range logs {
		byDate[l.Date] = l.TotalCalories
	}
	if byDate["2026-08-29"] != 100 || byDate["2026-08-30"] != 200 {
		t.Fatalf("logs by date = %v", byDate)
	}

	if _, err := s.GetAll("bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAll for unknown user err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAppendsConverge(t *testing.T) {
	s := newTestStore(t)
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Append("alice", mealOf(10, 1, 2, 3), Goals{Calories: 2000}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Append failed: %v", err)
	}

	log, err := s.Get("alice", s.now().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(log.Meals) != n {
		t.Fatalf("meals = %d, want %d (lost updates)", len(log.Meals), n)
	}
	if log.TotalCalories != n*10 || log.TotalProtein != n*1 || log.TotalCarbs != n*2 || log.TotalFat != n*3 {
		t.Fatalf("totals = %v/%v/%v/%v", log.TotalCalories, log.TotalProtein, log.TotalCarbs, log.TotalFat)
	}
}

func TestLockMapBoundedByUser(t *testing.T) {
	s := newTestStore(t)

	day1 := time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	s.now = func() time.Time { return day1 }
	if _, _, err := s.Append("alice", mealOf(1, 1, 1, 1), Goals{}); err != nil {
		t.Fatalf("Append day1 failed: %v", err)
	}
	s.now = func() time.Time { return day2 }
	if _, _, err := s.Append("alice", mealOf(1, 1, 1, 1), Goals{}); err != nil {
		t.Fatalf("Append day2 failed: %v", err)
	}
	if _, _, err := s.Append("bob", mealOf(1, 1, 1, 1), Goals{}); err != nil {
		t.Fatalf("Append bob failed: %v", err)
	}

	s.mu.Lock()
	n := len(s.locks)
	s.mu.Unlock()
	if n != 2 {
		t.Fatalf("lock map has %d entries, want one per user (2)", n)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Append("alice", mealOf(1, 1, 1, 1), Goals{}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "alice"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
