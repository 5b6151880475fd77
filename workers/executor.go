package workers

import (
	"context"
	"log/slog"
	"time"

	"memories/tags"
)

const taskTimeout = time.Minute

type TagsTasksExecutor struct {
	tagsManager *tags.Manager
}

func NewTagsTasksExecutor(tagsManager *tags.Manager) *TagsTasksExecutor {
	return &TagsTasksExecutor{tagsManager: tagsManager}
}

func (e *TagsTasksExecutor) ExecuteRefreshTagStats(tagList []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := e.tagsManager.Refresh(ctx, tagList); err != nil {
		slog.Error("tag stats refresh failed", "tags", tagList, "error", err)
		return err
	}
	slog.Debug("tag stats refreshed", "tags", tagList)
	return nil
}

func (e *TagsTasksExecutor) GetCommandsMapping() map[string]interface{} {
	return map[string]interface{}{
		refreshTagStatsTask: e.ExecuteRefreshTagStats,
	}
}
