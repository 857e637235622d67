package notify

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/agent/cloud"
	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// Wire constants for the scalar-update mutation. The backend schema expects
// an iteration count; the agent reports rounds through the chart instead, so
// these never vary.
const (
	updateIterations     = -1
	updateIterationsUnit = "iterations"
)

// stderrTailLines caps how much captured standard error is attached to a
// job-failed notification.
const stderrTailLines = 50

// PostFunc sends one GraphQL payload to the cloud backend.
type PostFunc func(ctx context.Context, payload cloud.Payload) error

// UploadFunc uploads a local file and, when wantDownloadLink is true,
// returns a link the backend can serve the file from.
type UploadFunc func(ctx context.Context, path string, wantDownloadLink bool) (string, error)

// CloudNotifier reports job events to the cloud backend as GraphQL
// mutations. The variable shapes must match the backend schema, so they are
// built field by field here rather than derived from Job.
type CloudNotifier struct {
	post   PostFunc
	upload UploadFunc
	log    *zap.SugaredLogger
}

func NewCloudNotifier(post PostFunc, upload UploadFunc, log *zap.SugaredLogger) *CloudNotifier {
	return &CloudNotifier{post: post, upload: upload, log: log}
}

func (n *CloudNotifier) Name() string { return "cloud" }

func (n *CloudNotifier) NotifyJobStart(ctx context.Context, j *job.Job) error {
	mutation := "mutation NotifyJobStart($in: JobStartInput!) { notifyJobStart(input: $in) }"
	in := map[string]interface{}{
		"id":          j.ID.String(),
		"name":        j.Name,
		"number":      j.Number,
		"created":     j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"description": j.Description,
	}
	return n.post(ctx, cloud.Payload{Query: mutation, Variables: map[string]interface{}{"in": in}})
}

// NotifyJobEnd reports completion. Failed jobs go through a dedicated
// mutation carrying the tail of captured standard error.
func (n *CloudNotifier) NotifyJobEnd(ctx context.Context, j *job.Job) error {
	if j.Status() == job.StatusFailed {
		return n.notifyJobFailed(ctx, j)
	}
	mutation := "mutation NotifyJobEnd($in: JobDoneInput!) { notifyJobDone(input: $in) }"
	in := map[string]interface{}{
		"id":     j.ID.String(),
		"name":   j.Name,
		"number": j.Number,
	}
	return n.post(ctx, cloud.Payload{Query: mutation, Variables: map[string]interface{}{"in": in}})
}

func (n *CloudNotifier) notifyJobFailed(ctx context.Context, j *job.Job) error {
	mutation := "mutation NotifyJobFailed($in: JobFailedInput!) { notifyJobFailed(input: $in) }"
	in := map[string]interface{}{
		"id":     j.ID.String(),
		"name":   j.Name,
		"number": j.Number,
		"stderr": tailLines(j.StderrPath(), stderrTailLines),
	}
	return n.post(ctx, cloud.Payload{Query: mutation, Variables: map[string]interface{}{"in": in}})
}

// NotifyJobUpdate uploads the chart first and embeds the resulting link. An
// upload failure degrades to an empty link rather than suppressing the
// notification.
func (n *CloudNotifier) NotifyJobUpdate(ctx context.Context, j *job.Job, imagePath string) error {
	link := ""
	if imagePath != "" {
		if info, err := os.Stat(imagePath); err == nil && !info.IsDir() {
			uploaded, err := n.upload(ctx, imagePath, true)
			if err != nil {
				n.log.Errorw("Could not upload chart",
					"symbol", sym.Cloud,
					logger.FieldJobID, j.ID.String(),
					logger.FieldError, err)
			} else {
				link = uploaded
			}
		}
	}

	mutation := "mutation NotifyJobEvent($in: JobScalarChangesWithImageInput!) {" +
		"notifyJobScalarChangesWithImage(input: $in)" +
		"}"
	in := map[string]interface{}{
		"id":             j.ID.String(),
		"name":           j.Name,
		"number":         j.Number,
		"iterationsN":    updateIterations,
		"iterationsUnit": updateIterationsUnit,
		"imageUrl":       link,
	}
	return n.post(ctx, cloud.Payload{Query: mutation, Variables: map[string]interface{}{"in": in}})
}

// tailLines returns the last n lines of the file, best effort. Missing or
// unreadable files yield an empty string; only the final 64 KiB are
// examined so a huge stderr cannot balloon the payload.
func tailLines(path string, n int) string {
	const maxTailBytes = 64 * 1024

	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := int64(0)
	if info.Size() > maxTailBytes {
		offset = info.Size() - maxTailBytes
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		// The first line is likely truncated by the offset.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
