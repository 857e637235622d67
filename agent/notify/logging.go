package notify

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// LoggingNotifier reports job events to the local log. On scalar updates it
// copies the rendered chart into the job's own output directory so the image
// survives the temp-file cleanup that follows dispatch.
type LoggingNotifier struct {
	log *zap.SugaredLogger
}

func NewLoggingNotifier(log *zap.SugaredLogger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

func (n *LoggingNotifier) Name() string { return "logging" }

func (n *LoggingNotifier) NotifyJobStart(ctx context.Context, j *job.Job) error {
	n.log.Infow("Job started",
		"symbol", sym.Job,
		logger.FieldJobID, j.ID.String(),
		logger.FieldJobName, j.Name)
	return nil
}

func (n *LoggingNotifier) NotifyJobEnd(ctx context.Context, j *job.Job) error {
	n.log.Infow("Job finished",
		"symbol", sym.Job,
		logger.FieldJobID, j.ID.String(),
		logger.FieldJobName, j.Name,
		logger.FieldStatus, string(j.Status()))
	return nil
}

// NotifyJobUpdate copies the chart into the job directory and logs where it
// landed. A missing image or a job without an output directory is not an
// error; there is simply nothing to keep.
func (n *LoggingNotifier) NotifyJobUpdate(ctx context.Context, j *job.Job, imagePath string) error {
	if imagePath == "" || j.OutputPath() == "" {
		return nil
	}
	info, err := os.Stat(imagePath)
	if err != nil || info.IsDir() {
		return nil
	}
	dst := filepath.Join(j.OutputPath(), filepath.Base(imagePath))
	if err := copyFile(imagePath, dst); err != nil {
		return errors.Wrapf(err, "copy chart for job %s", j.ID)
	}
	n.log.Infow("Scalar update",
		"symbol", sym.Track,
		logger.FieldJobID, j.ID.String(),
		logger.FieldJobName, j.Name,
		"chart", dst)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
