package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/storage"
	"github.com/slok/doctrans/internal/storage/memory"
)

func taskFixture(id string, state model.TaskState, createdAt time.Time) model.TaskRecord {
	return model.TaskRecord{
		ID:          id,
		FileName:    "paper.pdf",
		Mode:        model.TranslationModeDocument,
		APIType:     "google",
		SourceLang:  "auto",
		TargetLang:  "zh",
		Concurrency: 4,
		State:       state,
		CreatedAt:   createdAt,
	}
}

func newRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	return repo
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

	task := taskFixture("task_1", model.TaskStateSubmitting, now)
	require.NoError(t, repo.CreateTask(ctx, task))

	err := repo.CreateTask(ctx, task)
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	got, err := repo.GetTask(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, task, *got)

	finished := now.Add(time.Minute)
	task.State = model.TaskStateCompleted
	task.OutputFile = "translated_paper.pdf"
	task.FinishedAt = &finished
	require.NoError(t, repo.UpdateTask(ctx, task))

	got, err = repo.GetTask(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateCompleted, got.State)
	assert.Equal(t, finished, *got.FinishedAt)

	// Returned records are copies.
	*got.FinishedAt = now
	got2, err := repo.GetTask(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, finished, *got2.FinishedAt)

	require.NoError(t, repo.DeleteTask(ctx, "task_1"))
	_, err = repo.GetTask(ctx, "task_1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRepositoryMissingTask(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	err := repo.UpdateTask(ctx, taskFixture("missing", model.TaskStateFailed, time.Now()))
	assert.True(t, errors.Is(err, model.ErrNotFound))

	err = repo.DeleteTask(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRepositoryListTasks(t *testing.T) {
	base := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		opts   storage.ListTasksOpts
		expIDs []string
	}{
		"Listing without filters should return all the tasks newest first.": {
			expIDs: []string{"task_4", "task_3", "task_2", "task_1"},
		},
		"Listing by state should filter.": {
			opts:   storage.ListTasksOpts{State: model.TaskStateCompleted},
			expIDs: []string{"task_3", "task_1"},
		},
		"Listing with limit should return the newest ones.": {
			opts:   storage.ListTasksOpts{Limit: 2},
			expIDs: []string{"task_4", "task_3"},
		},
		"Listing by a state without tasks should return nothing.": {
			opts:   storage.ListTasksOpts{State: model.TaskStateCancelled},
			expIDs: []string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			require.NoError(t, repo.CreateTask(ctx, taskFixture("task_1", model.TaskStateCompleted, base)))
			require.NoError(t, repo.CreateTask(ctx, taskFixture("task_2", model.TaskStateFailed, base.Add(time.Minute))))
			// Same creation time, ties are sorted by ID.
			require.NoError(t, repo.CreateTask(ctx, taskFixture("task_3", model.TaskStateCompleted, base.Add(2*time.Minute))))
			require.NoError(t, repo.CreateTask(ctx, taskFixture("task_4", model.TaskStateStreaming, base.Add(2*time.Minute))))

			got, err := repo.ListTasks(ctx, test.opts)
			require.NoError(t, err)

			gotIDs := []string{}
			for _, task := range got {
				gotIDs = append(gotIDs, task.ID)
			}
			assert.Equal(t, test.expIDs, gotIDs)
		})
	}
}
