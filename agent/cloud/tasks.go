package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/sym"
)

// TaskType discriminates the remote-command union. The values are the
// __typename strings the backend sends.
type TaskType string

const (
	TaskStopJob           TaskType = "StopJobTask"
	TaskCreateJobFromRepo TaskType = "CreateGitHubJobTask"
)

// Task is one remote command popped from the cloud.
type Task struct {
	Type TaskType

	// JobIdentifier names the job a StopJob task targets: UUID, number,
	// or name pattern.
	JobIdentifier string

	// CreateJobFromRepo fields.
	Repo         string
	EntryPoint   string
	Ref          string
	Name         string
	PollInterval time.Duration
}

func (t Task) String() string {
	switch t.Type {
	case TaskStopJob:
		return fmt.Sprintf("stop job matching %q", t.JobIdentifier)
	case TaskCreateJobFromRepo:
		return fmt.Sprintf("run %s from %s@%s", t.EntryPoint, t.Repo, t.Ref)
	default:
		return fmt.Sprintf("unknown task %q", string(t.Type))
	}
}

// taskJSON mirrors the popClientTasks response. Only id is guaranteed;
// the repo-job fields appear when the backend schema provides them.
type taskJSON struct {
	Typename string `json:"__typename"`
	Job      struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Repository     string  `json:"repository"`
		EntryPoint     string  `json:"entry_point"`
		BranchOrCommit string  `json:"branch_or_commit_sha"`
		ReportInterval float64 `json:"report_interval"`
	} `json:"job"`
}

// PopTasks fetches and removes pending remote commands from the backend.
// Tasks of a type this agent does not know are logged and skipped rather
// than failing the batch.
func (c *Client) PopTasks(ctx context.Context) ([]Task, error) {
	payload := Payload{
		Query:     "mutation { popClientTasks { __typename job { id } } }",
		Variables: map[string]interface{}{},
	}
	data, err := c.Do(ctx, payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		PopClientTasks []taskJSON `json:"popClientTasks"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode tasks")
	}

	tasks := make([]Task, 0, len(out.PopClientTasks))
	for _, raw := range out.PopClientTasks {
		switch TaskType(raw.Typename) {
		case TaskStopJob:
			tasks = append(tasks, Task{
				Type:          TaskStopJob,
				JobIdentifier: raw.Job.ID,
			})
		case TaskCreateJobFromRepo:
			tasks = append(tasks, Task{
				Type:         TaskCreateJobFromRepo,
				Repo:         raw.Job.Repository,
				EntryPoint:   raw.Job.EntryPoint,
				Ref:          raw.Job.BranchOrCommit,
				Name:         raw.Job.Name,
				PollInterval: time.Duration(raw.Job.ReportInterval * float64(time.Second)),
			})
		default:
			c.log.Warnw("Skipping unrecognized task type",
				"symbol", sym.Cloud,
				"type", raw.Typename)
		}
	}
	return tasks, nil
}
