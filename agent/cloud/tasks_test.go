package cloud

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopTasks(t *testing.T) {
	api := &apiServer{responses: []apiResponse{{
		status: 200,
		body: `{"data":{"popClientTasks":[
			{"__typename":"StopJobTask","job":{"id":"f0bf2577-12d9-4522-b77f-e03387e67a1c"}},
			{"__typename":"CreateGitHubJobTask","job":{
				"id":"x","repository":"org/repo","entry_point":"train.py",
				"branch_or_commit_sha":"main","name":"nightly","report_interval":60}},
			{"__typename":"FutureTask","job":{"id":"y"}}
		]}}`,
	}}}
	tokens := &tokenServer{}
	client, _, cleanup := newTestClient(t, api, tokens)
	defer cleanup()

	tasks, err := client.PopTasks(context.Background())
	require.NoError(t, err)

	// The unknown FutureTask is skipped, not fatal.
	require.Len(t, tasks, 2)

	assert.Equal(t, TaskStopJob, tasks[0].Type)
	assert.Equal(t, "f0bf2577-12d9-4522-b77f-e03387e67a1c", tasks[0].JobIdentifier)

	assert.Equal(t, TaskCreateJobFromRepo, tasks[1].Type)
	assert.Equal(t, "org/repo", tasks[1].Repo)
	assert.Equal(t, "train.py", tasks[1].EntryPoint)
	assert.Equal(t, "main", tasks[1].Ref)
	assert.Equal(t, "nightly", tasks[1].Name)
	assert.Equal(t, time.Minute, tasks[1].PollInterval)

	require.Equal(t, 1, api.posts())
	assert.Equal(t, "mutation { popClientTasks { __typename job { id } } }", api.seen[0].Query)
}

func TestPopTasksEmpty(t *testing.T) {
	api := &apiServer{responses: []apiResponse{{status: 200, body: `{"data":{"popClientTasks":[]}}`}}}
	tokens := &tokenServer{}
	client, _, cleanup := newTestClient(t, api, tokens)
	defer cleanup()

	tasks, err := client.PopTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskString(t *testing.T) {
	stop := Task{Type: TaskStopJob, JobIdentifier: "42"}
	assert.Contains(t, stop.String(), "42")

	create := Task{Type: TaskCreateJobFromRepo, Repo: "org/repo", EntryPoint: "train.py", Ref: "main"}
	assert.Contains(t, create.String(), "org/repo")
	assert.Contains(t, create.String(), "train.py")
}
