package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/google/uuid"
)

// KeyTasks is the storage key of the device-wide task collection.
const KeyTasks = "tasks"

// TaskScope decides whether the task collection is shared by everyone using
// the device or kept per signed-in user.
type TaskScope string

const (
	ScopeDevice TaskScope = "device"
	ScopeUser   TaskScope = "user"
)

// TasksKeyFor returns the storage key for the collection visible to user.
// Device scope, or user scope without a signed-in user, uses KeyTasks.
func TasksKeyFor(scope TaskScope, user *models.User) string {
	if scope != ScopeUser || user == nil || user.ID == 0 {
		return KeyTasks
	}
	return KeyTasks + ":" + strconv.FormatInt(user.ID, 10)
}

// TaskStore is local CRUD over the task collection, stored as one JSON array
// under a single key. Every mutation reads, modifies and writes the whole
// collection while holding mu.
type TaskStore struct {
	store kv.Store
	log   logging.Logger
	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	key      string
	lastTick time.Time
}

type TaskOption func(*TaskStore)

func WithTasksKey(key string) TaskOption {
	return func(s *TaskStore) { s.key = key }
}

func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskStore) { s.now = now }
}

func WithIDGenerator(gen func() string) TaskOption {
	return func(s *TaskStore) { s.newID = gen }
}

func NewTaskStore(store kv.Store, log logging.Logger, opts ...TaskOption) *TaskStore {
	if log == nil {
		log = logging.Nop()
	}
	s := &TaskStore{
		store: store,
		log:   log.With("component", "tasks"),
		now:   time.Now,
		newID: uuid.NewString,
		key:   KeyTasks,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Rebind switches the store to another collection key. Operations already
// holding the lock finish against the old key.
func (s *TaskStore) Rebind(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
}

func (s *TaskStore) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// tick returns a UTC timestamp after both the previous tick and prev.
func (s *TaskStore) tick(prev time.Time) time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Nanosecond)
	}
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	s.lastTick = t
	return t
}

// read loads the collection. Absent or unparsable data yields an empty
// collection; only a failing store is an error.
func (s *TaskStore) read(ctx context.Context) ([]models.Task, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if errors.Is(err, common.ErrCorruptData) {
		s.log.Warn(ctx, "task collection unreadable, starting empty", "key", s.key, "error", err)
		return []models.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w: %w", common.ErrPersistence, err)
	}
	if !ok || len(raw) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		s.log.Warn(ctx, "task collection unreadable, starting empty", "key", s.key,
			"error", fmt.Errorf("%w: %w", common.ErrCorruptData, err))
		return []models.Task{}, nil
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskStore) write(ctx context.Context, tasks []models.Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := s.store.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save tasks: %w: %w", common.ErrPersistence, err)
	}
	return nil
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func notFound(id string) error {
	return fmt.Errorf("task %s: %w", id, common.ErrNotFound)
}

// Load returns the whole collection in insertion order.
func (s *TaskStore) Load(ctx context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *TaskStore) Get(ctx context.Context, id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		return models.Task{}, err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return models.Task{}, notFound(id)
	}
	return tasks[i], nil
}

func (s *TaskStore) Create(ctx context.Context, in models.TaskInput) (models.Task, error) {
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		return models.Task{}, err
	}

	id := s.newID()
	for indexOf(tasks, id) >= 0 {
		id = s.newID()
	}

	now := s.tick(time.Time{})
	t := models.Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.write(ctx, append(tasks, t)); err != nil {
		return models.Task{}, err
	}
	s.log.Debug(ctx, "task created", "id", id)
	return t, nil
}

// mutate applies fn to the task with the given id and persists the result.
func (s *TaskStore) mutate(ctx context.Context, id string, fn func(*models.Task) error) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		return models.Task{}, err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return models.Task{}, notFound(id)
	}

	t := tasks[i]
	if err := fn(&t); err != nil {
		return models.Task{}, err
	}
	t.UpdatedAt = s.tick(t.UpdatedAt)
	tasks[i] = t

	if err := s.write(ctx, tasks); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Update merges patch into the task. An empty patch still bumps UpdatedAt.
func (s *TaskStore) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	return s.mutate(ctx, id, patch.Apply)
}

func (s *TaskStore) ToggleComplete(ctx context.Context, id string) (models.Task, error) {
	return s.mutate(ctx, id, func(t *models.Task) error {
		t.Completed = !t.Completed
		return nil
	})
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		return err
	}
	i := indexOf(tasks, id)
	if i < 0 {
		return notFound(id)
	}
	tasks = append(tasks[:i], tasks[i+1:]...)
	if err := s.write(ctx, tasks); err != nil {
		return err
	}
	s.log.Debug(ctx, "task deleted", "id", id)
	return nil
}

// ClearCompleted removes every completed task and returns how many were removed.
func (s *TaskStore) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	pending := models.Pending(tasks)
	removed := len(tasks) - len(pending)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(ctx, pending); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *TaskStore) ListPending(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return models.Pending(tasks), nil
}

func (s *TaskStore) ListCompleted(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return models.Completed(tasks), nil
}

func (s *TaskStore) Stats(ctx context.Context) (models.Stats, error) {
	tasks, err := s.Load(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Summarize(tasks), nil
}
