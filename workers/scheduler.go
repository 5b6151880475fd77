package workers

import (
	"fmt"
	"time"

	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/config"
	"github.com/RichardKnop/machinery/v1/log"
	"github.com/RichardKnop/machinery/v1/tasks"
)

const (
	refreshTagStatsTask = "RefreshTagStats"

	tasksQueue = "memories_tasks"
	workerTag  = "memories_worker"

	// Redis timeouts are in seconds, poll periods in milliseconds.
	redisMaxIdle        = 3
	redisIdleTimeout    = 240
	redisIOTimeout      = 15
	normalPollPeriod    = 1000
	delayedPollPeriod   = 500
	taskResultsLifetime = time.Hour
)

// Scheduler publishes tag refresh tasks to the machinery broker and runs the
// worker that consumes them.
type Scheduler struct {
	server *machinery.Server
}

// machineryConfig uses the same redis instance as broker and result backend.
func machineryConfig(brokerUrl string) *config.Config {
	redisUrl := "redis://" + brokerUrl
	return &config.Config{
		Broker:          redisUrl,
		ResultBackend:   redisUrl,
		DefaultQueue:    tasksQueue,
		ResultsExpireIn: int(taskResultsLifetime / time.Second),
		Redis: &config.RedisConfig{
			MaxIdle:                redisMaxIdle,
			IdleTimeout:            redisIdleTimeout,
			ReadTimeout:            redisIOTimeout,
			WriteTimeout:           redisIOTimeout,
			ConnectTimeout:         redisIOTimeout,
			NormalTasksPollPeriod:  normalPollPeriod,
			DelayedTasksPollPeriod: delayedPollPeriod,
		},
	}
}

func NewScheduler(brokerUrl string) (*Scheduler, error) {
	server, err := machinery.NewServer(machineryConfig(brokerUrl))
	if err != nil {
		return nil, fmt.Errorf("machinery server: %w", err)
	}
	return &Scheduler{server: server}, nil
}

func (sh *Scheduler) Listen() error {
	worker := sh.server.NewWorker(workerTag, 0)
	worker.SetErrorHandler(func(err error) {
		log.ERROR.Println("tag stats task failed:", err)
	})
	return worker.Launch()
}

func (sh *Scheduler) PublishRefreshTags(tags []string) error {
	_, err := sh.server.SendTask(&tasks.Signature{
		Name: refreshTagStatsTask,
		Args: []tasks.Arg{{Type: "[]string", Value: tags}},
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", refreshTagStatsTask, err)
	}
	return nil
}

func (sh *Scheduler) Register(executor *TagsTasksExecutor) error {
	return sh.server.RegisterTasks(executor.GetCommandsMapping())
}
