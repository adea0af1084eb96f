// Package userlog persists per-user daily meal logs: one directory per user,
// one JSON document per calendar date, with running nutrient totals and the
// day's goals fixed at first write.
package userlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrInvalidUser rejects empty or placeholder user names before any
// filesystem access happens.
var ErrInvalidUser = errors.New("invalid user name")

// ErrNotFound marks a (user, date) pair with no log on disk.
var ErrNotFound = errors.New("no log record")

// Entry is one logged meal. Callers may send arbitrary fields; the store
// strips the image reference and any goal-prefixed keys before appending.
type Entry map[string]any

// Goals are the daily nutrient targets, seeded on the first write of a day
// and never overwritten afterwards.
type Goals struct {
	Calories float64 `json:"goalCalories"`
	Protein  float64 `json:"goalProtein"`
	Carbs    float64 `json:"goalCarbs"`
	Fat      float64 `json:"goalFat"`
}

// DailyLog is the unit of durability: the whole document is read, modified
// and rewritten on every append for its (user, date) pair.
type DailyLog struct {
	UserName      string  `json:"userName"`
	Date          string  `json:"date"`
	Meals         []Entry `json:"meals"`
	GoalCalories  float64 `json:"goalCalories"`
	GoalProtein   float64 `json:"goalProtein"`
	GoalCarbs     float64 `json:"goalCarbs"`
	GoalFat       float64 `json:"goalFat"`
	TotalCalories float64 `json:"totalCalories"`
	TotalProtein  float64 `json:"totalProtein"`
	TotalCarbs    float64 `json:"totalCarbs"`
	TotalFat      float64 `json:"totalFat"`
}

const dateLayout = "2006-01-02"

// imageField is the caller-side photo reference, excluded from persistence.
const imageField = "image"

type Store struct {
	root string
	now  func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(root string) *Store {
	return &Store{
		root:  root,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing writes for one user. Appends always
// target the current date, so a per-user lock covers the contended
// (user, date) file while keeping the map bounded by the user population
// rather than growing one entry per user-day forever.
func (s *Store) lockFor(user string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	return l
}

// Append adds a meal to today's log for the user, creating the day's
// document on first write. It returns the updated log and the file path it
// was written to.
func (s *Store) Append(userName string, meal Entry, goals Goals) (*DailyLog, string, error) {
	if err := validateUserName(userName); err != nil {
		return nil, "", err
	}

	date := s.now().Format(dateLayout)
	lock := s.lockFor(userName)
	lock.Lock()
	defer lock.Unlock()

	log, err := s.Get(userName, date)
	switch {
	case errors.Is(err, ErrNotFound):
		log = &DailyLog{
			UserName:     userName,
			Date:         date,
			Meals:        []Entry{},
			GoalCalories: goals.Calories,
			GoalProtein:  goals.Protein,
			GoalCarbs:    goals.Carbs,
			GoalFat:      goals.Fat,
		}
	case err != nil:
		return nil, "", err
	}
	// On an existing day the stored goals win; later goal values are
	// deliberately ignored.

	entry := sanitizeEntry(meal)
	if _, ok := entry["id"]; !ok {
		entry["id"] = uuid.New().String()
	}
	if _, ok := entry["loggedAt"]; !ok {
		entry["loggedAt"] = s.now().Format(time.RFC3339)
	}

	log.Meals = append(log.Meals, entry)
	log.TotalCalories += numField(entry, "calories")
	log.TotalProtein += numField(entry, "protein")
	log.TotalCarbs += numField(entry, "carbs")
	log.TotalFat += numField(entry, "fat")

	path := s.logPath(userName, date)
	if err := writeDocument(path, log); err != nil {
		return nil, "", err
	}
	return log, path, nil
}

// Get reads the log for one (user, date). ErrNotFound when absent.
func (s *Store) Get(userName, date string) (*DailyLog, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(s.logPath(userName, date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	var log DailyLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse log %s/%s: %w", userName, date, err)
	}
	return &log, nil
}

// GetAll returns every daily log for the user in directory-listing order,
// which is not necessarily chronological. ErrNotFound when the user has no
// logs at all.
func (s *Store) GetAll(userName string) ([]*DailyLog, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, userName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list user logs: %w", err)
	}

	var logs []*DailyLog
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		date := strings.TrimSuffix(name, ".json")
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		log, err := s.Get(userName, date)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	if len(logs) == 0 {
		return nil, ErrNotFound
	}
	return logs, nil
}

func (s *Store) logPath(userName, date string) string {
	return filepath.Join(s.root, userName, date+".json")
}

// validateUserName also rejects the placeholder strings a broken client
// serializes into the URL, and anything that would escape the user directory.
func validateUserName(userName string) error {
	switch strings.ToLower(strings.TrimSpace(userName)) {
	case "", "undefined", "null":
		return ErrInvalidUser
	}
	if strings.ContainsAny(userName, "/\\") || userName != filepath.Base(userName) ||
		userName == "." || userName == ".." {
		return ErrInvalidUser
	}
	return nil
}

// sanitizeEntry copies the meal without its image reference or any
// goal-prefixed fields; goals travel on the document, not on meals.
func sanitizeEntry(meal Entry) Entry {
	entry := make(Entry, len(meal))
	for k, v := range meal {
		if k == imageField || strings.HasPrefix(strings.ToLower(k), "goal") {
			continue
		}
		entry[k] = v
	}
	return entry
}

// numField reads a numeric meal field, treating anything absent or
// non-numeric as zero.
func numField(entry Entry, key string) float64 {
	switch v := entry[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// writeDocument replaces the log file atomically: write a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous document intact.
func writeDocument(path string, log *DailyLog) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace log: %w", err)
	}
	return nil
}
