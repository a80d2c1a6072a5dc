package faststart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alchemy/rotoslog"
	"github.com/phsym/console-slog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"m7s.live/faststart/pkg"
	"m7s.live/faststart/pkg/config"
	"m7s.live/faststart/pkg/db"
	mp4 "m7s.live/faststart/plugin/mp4/pkg"
)

// Result is the outcome of one input file. Per file failures are reported here
// and never abort the other files.
type Result struct {
	Path        string
	Output      string
	Status      mp4.Status
	InputLength int64
	Duration    time.Duration
	Err         error
}

func (r *Result) Converted() bool {
	return r.Status.Outcome == mp4.OutcomeConverted
}

type Runner struct {
	*slog.Logger
	Notify    mp4.Notifier
	CheckOnly bool
	// Output overrides the generated output path, only valid for a single input
	Output string

	conf    *config.FastStart
	handler *pkg.MultiLogHandler
	db      *gorm.DB
	dbLock  sync.Mutex
	metrics *Metrics
}

func NewRunner(conf *config.FastStart) (*Runner, error) {
	return newRunner(conf, os.Stderr)
}

func newRunner(conf *config.FastStart, w io.Writer) (r *Runner, err error) {
	r = &Runner{conf: conf, metrics: NewMetrics()}
	level := pkg.ParseLevel(conf.Log.Level)
	r.handler = pkg.NewMultiLogHandler(level, newConsoleHandler(w, level, conf.Log.NoColor))
	if conf.Log.Path != "" {
		builder := func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
			return newConsoleHandler(w, level, true)
		}
		var rotate slog.Handler
		rotate, err = rotoslog.NewHandler(rotoslog.LogHandlerBuilder(builder), rotoslog.LogDir(conf.Log.Path), rotoslog.MaxFileSize(conf.Log.MaxSize), rotoslog.DateTimeLayout(conf.Log.Formatter), rotoslog.MaxRotatedFiles(conf.Log.MaxFiles))
		if err != nil {
			return nil, fmt.Errorf("log rotate: %w", err)
		}
		r.handler.Add(rotate)
	}
	r.Logger = slog.New(r.handler)
	if conf.DB.DSN != "" {
		if r.db, err = db.Open(conf.DB.Type, conf.DB.DSN); err != nil {
			return nil, err
		}
		r.Info("history enabled", "type", conf.DB.Type, "dsn", conf.DB.DSN)
	}
	return
}

func newConsoleHandler(w io.Writer, level slog.Level, noColor bool) slog.Handler {
	return console.NewHandler(w, &console.HandlerOptions{NoColor: noColor, Level: level, TimeFormat: "2006-01-02 15:04:05.000"})
}

func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

func (r *Runner) DB() *gorm.DB {
	return r.db
}

// Run processes paths with at most Concurrency files in flight. The returned
// error covers only problems of the run itself, results are in input order.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	if len(paths) == 0 {
		return nil, pkg.ErrNoInput
	}
	if r.Output != "" && len(paths) > 1 {
		return nil, fmt.Errorf("output path given for %d inputs", len(paths))
	}
	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.conf.Concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			results[i] = r.convert(ctx, path)
			return nil
		})
	}
	err := g.Wait()
	if r.conf.Metrics.Path != "" {
		if merr := r.metrics.WriteTextfile(r.conf.Metrics.Path); merr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", merr))
		}
	}
	return results, err
}

func (r *Runner) convert(ctx context.Context, path string) (res Result) {
	start := time.Now()
	res.Path = path
	defer func() {
		res.Duration = time.Since(start)
		r.metrics.Observe(&res)
		r.record(&res)
	}()
	src, err := OpenSource(path, r.conf.Rewrite.ReadBuffer, r.conf.Rewrite.ReadPages)
	if err != nil {
		if errors.Is(err, os.ErrInvalid) {
			err = fmt.Errorf("%w: %s", pkg.ErrNotRegular, path)
		}
		r.Error("open input", "path", path, "error", err)
		res.Status.Outcome = mp4.OutcomeFailed
		res.Err = err
		return
	}
	res.InputLength = src.Length

	fs := mp4.New()
	fs.Logger = r.Logger
	fs.Notify = r.Notify
	fs.TaskName = filepath.Base(path)
	fs.RemoveFreeAtom = r.conf.Rewrite.RemoveFree
	fs.ChunkSize = r.conf.Rewrite.ChunkSize
	fs.OutputProgressLog = r.conf.Rewrite.ProgressLog

	if r.CheckOnly {
		fs.Check(ctx, src)
		src.Close()
	} else {
		out, replace := r.outputFor(path)
		res.Output = out.Path
		converted := fs.Process(ctx, src, out)
		src.Close()
		if converted && replace {
			if err = os.Rename(out.Path, path); err != nil {
				r.Error("replace source", "path", path, "error", err)
				os.Remove(out.Path)
				res.Status = fs.Status()
				res.Status.Outcome = mp4.OutcomeFailed
				res.Err = fmt.Errorf("%w: %w", pkg.ErrNotConverted, err)
				return
			}
			res.Output = path
		}
		if !converted {
			res.Output = ""
		}
	}
	res.Status = fs.Status()
	switch res.Status.Outcome {
	case mp4.OutcomeUnsupported:
		res.Err = fmt.Errorf("%w: %s", pkg.ErrUnsupported, path)
	case mp4.OutcomeFailed:
		res.Err = fmt.Errorf("%w: %w", pkg.ErrNotConverted, res.Status.LastError)
	}
	r.Info("done", "path", path, "outcome", res.Status.Outcome, "output", res.Output, "elapsed", time.Since(start))
	return
}

// outputFor returns the output target of path and whether it replaces path
// once written.
func (r *Runner) outputFor(path string) (out *FileOutput, replace bool) {
	target := r.Output
	if target == "" {
		target = OutputPath(path, r.conf.Rewrite.Suffix)
	}
	if r.conf.Rewrite.Replace || samePath(target, path) {
		return &FileOutput{Path: path + ".faststart.tmp", Overwrite: true}, true
	}
	return &FileOutput{Path: target}, false
}

func (r *Runner) record(res *Result) {
	if r.db == nil {
		return
	}
	rec := db.ConvertRecord{
		Task:         filepath.Base(res.Path),
		Source:       res.Path,
		Output:       res.Output,
		Outcome:      res.Status.Outcome.String(),
		SlowStart:    res.Status.SlowStart,
		HasFreeAtoms: res.Status.HasFreeAtoms,
		Unsupported:  res.Status.Unsupported,
		InputLength:  res.InputLength,
		OutputLength: res.Status.OutputLength,
		Duration:     res.Duration,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	r.dbLock.Lock()
	defer r.dbLock.Unlock()
	if err := db.Save(r.db, &rec); err != nil {
		r.Error("save history", "path", res.Path, "error", err)
	}
}

func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
