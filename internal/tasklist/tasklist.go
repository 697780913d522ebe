// Package tasklist implements the two user-facing task list actions, adding a
// task and toggling its completion, on top of the task store.
package tasklist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nick-dorsch/tasklist/internal/db"
	"github.com/nick-dorsch/tasklist/internal/metrics"
	"github.com/nick-dorsch/tasklist/pkg/models"
	"go.uber.org/zap"
)

// ErrEmptyDescription is carried by rejected AddTask results.
var ErrEmptyDescription = errors.New("description cannot be empty")

// Store is the persistence the controller routes every read and write through.
type Store interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	SetTaskCompleted(ctx context.Context, id string, completed bool) (*models.Task, error)
	ListTasks(ctx context.Context) ([]*models.Task, error)
}

type Outcome string

const (
	OutcomeAdded    Outcome = "added"
	OutcomeToggled  Outcome = "toggled"
	OutcomeRejected Outcome = "rejected"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// Result reports what an action did. Task is set for added and toggled
// outcomes; Err is set for every other outcome.
type Result struct {
	Outcome Outcome
	Task    *models.Task
	Err     error
}

// OK reports whether the action changed the store.
func (r Result) OK() bool {
	return r.Outcome == OutcomeAdded || r.Outcome == OutcomeToggled
}

type Controller struct {
	store  Store
	logger *zap.Logger

	// mu serialises mutations so that actions from different surfaces are
	// applied one at a time.
	mu sync.Mutex
}

func NewController(store Store, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:  store,
		logger: logger,
	}
}

// AddTask creates an incomplete task from description. Descriptions that are
// empty after trimming are rejected without touching the store.
func (c *Controller) AddTask(ctx context.Context, description string) Result {
	started := time.Now()
	res := c.addTask(ctx, description)
	metrics.ObserveOperation("add", string(res.Outcome), started)
	return res
}

func (c *Controller) addTask(ctx context.Context, description string) Result {
	description = strings.TrimSpace(description)
	if description == "" {
		c.logger.Debug("Rejected empty task description")
		return Result{Outcome: OutcomeRejected, Err: ErrEmptyDescription}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &models.Task{Description: description}
	if err := c.store.CreateTask(ctx, t); err != nil {
		c.logger.Error("Failed to persist new task",
			zap.String("description", description),
			zap.Error(err),
		)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	c.logger.Info("Task added",
		zap.String("task_id", t.ID),
		zap.String("description", t.Description),
	)
	return Result{Outcome: OutcomeAdded, Task: t}
}

// ToggleCompletion flips the completed flag of the task with the given id.
// Unknown ids are a no-op reported as OutcomeNotFound.
func (c *Controller) ToggleCompletion(ctx context.Context, id string) Result {
	started := time.Now()
	res := c.toggleCompletion(ctx, id)
	metrics.ObserveOperation("toggle", string(res.Outcome), started)
	return res
}

func (c *Controller) toggleCompletion(ctx context.Context, id string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.GetTask(ctx, id)
	if err != nil {
		c.logger.Error("Failed to look up task", zap.String("task_id", id), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if current == nil {
		c.logger.Debug("Toggle ignored for unknown task", zap.String("task_id", id))
		return Result{Outcome: OutcomeNotFound, Err: db.ErrTaskNotFound}
	}

	updated, err := c.store.SetTaskCompleted(ctx, id, !current.Completed)
	if errors.Is(err, db.ErrTaskNotFound) {
		return Result{Outcome: OutcomeNotFound, Err: err}
	}
	if err != nil {
		c.logger.Error("Failed to persist task completion",
			zap.String("task_id", id),
			zap.Bool("completed", !current.Completed),
			zap.Error(err),
		)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	c.logger.Info("Task toggled",
		zap.String("task_id", id),
		zap.Bool("completed", updated.Completed),
	)
	return Result{Outcome: OutcomeToggled, Task: updated}
}

// Tasks returns the current task list in description order.
func (c *Controller) Tasks(ctx context.Context) ([]*models.Task, error) {
	return c.store.ListTasks(ctx)
}
