// Package fanout uploads one job to many endpoints at once, one isolated
// session per endpoint.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/storage"
	"github.com/quocson95/ftpfleet/pkg/transfer"
)

const (
	MsgSkipped   = "Skipped (disabled)"
	MsgUploading = "Uploading..."
	MsgSuccess   = "Success"
)

// Job is what gets uploaded to every endpoint
type Job struct {
	LocalPaths []string
	RemoteDir  string // used by profiles without their own remote dir
}

// Result is the outcome for one profile
type Result struct {
	Profile   storage.Profile
	RemoteDir string
	Skipped   bool
	Success   bool
	Message   string
	Err       error
	Duration  time.Duration
}

// Dispatcher runs upload jobs across profiles
type Dispatcher struct {
	opener session.Opener
	log    zerolog.Logger
}

// NewDispatcher creates a dispatcher that opens sessions through opener
func NewDispatcher(opener session.Opener, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{opener: opener, log: log}
}

// Run tracks one Distribute call
type Run struct {
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.Mutex
	results []Result
}

// Wait blocks until every endpoint finished and returns the results in
// profile order.
func (r *Run) Wait() []Result {
	<-r.done
	return r.Results()
}

// Done is closed when every endpoint finished
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Results returns a snapshot; entries of unfinished endpoints are zero
// apart from Profile.
func (r *Run) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func (r *Run) set(i int, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[i] = res
}

// Distribute starts uploading localPaths to every enabled profile and returns
// immediately. Disabled profiles get a single skipped status and no session.
// Profiles and paths are copied, so callers may reuse their slices.
func (d *Dispatcher) Distribute(ctx context.Context, profiles []storage.Profile, localPaths []string, defaultRemoteDir string, progress ProgressSink, status StatusSink) *Run {
	if progress == nil {
		progress = nopSink{}
	}
	if status == nil {
		status = nopSink{}
	}

	job := Job{
		LocalPaths: append([]string(nil), localPaths...),
		RemoteDir:  defaultRemoteDir,
	}
	snapshot := append([]storage.Profile(nil), profiles...)

	run := &Run{
		done:    make(chan struct{}),
		results: make([]Result, len(snapshot)),
	}

	for i, p := range snapshot {
		run.results[i] = Result{Profile: p}
		if !p.Enabled {
			status.Status(StatusEvent{Host: p.Host, Message: MsgSkipped, Code: InProgress})
			run.results[i] = Result{Profile: p, Skipped: true, Message: MsgSkipped}
			continue
		}

		run.wg.Add(1)
		go func(i int, p storage.Profile) {
			defer run.wg.Done()
			run.set(i, d.runOne(ctx, p, job, progress, status))
		}(i, p)
	}

	go func() {
		run.wg.Wait()
		close(run.done)
	}()

	return run
}

func (d *Dispatcher) runOne(ctx context.Context, p storage.Profile, job Job, progress ProgressSink, status StatusSink) (res Result) {
	start := time.Now()
	log := d.log.With().Str("host", p.Host).Logger()
	res = Result{Profile: p, RemoteDir: p.TargetDir(job.RemoteDir)}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("upload worker panicked")
			res.Success = false
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Message = "Failed: " + res.Err.Error()
			status.Status(StatusEvent{Host: p.Host, Message: res.Message, Code: Failed})
			return
		}
		res.Success = true
		res.Message = MsgSuccess
		status.Status(StatusEvent{Host: p.Host, Message: MsgSuccess, Code: Success})
	}()

	status.Status(StatusEvent{Host: p.Host, Message: MsgUploading, Code: InProgress})
	log.Info().Str("remote_dir", res.RemoteDir).Int("paths", len(job.LocalPaths)).Msg("upload started")

	res.Err = d.upload(ctx, p, job.LocalPaths, res.RemoteDir, log, func(done, total uint64) {
		progress.Progress(ProgressEvent{Host: p.Host, BytesDone: done, BytesTotal: total})
	})

	if res.Err != nil {
		log.Error().Err(res.Err).Msg("upload failed")
	} else {
		log.Info().Dur("took", time.Since(start)).Msg("upload finished")
	}
	return res
}

func (d *Dispatcher) upload(ctx context.Context, p storage.Profile, localPaths []string, remoteDir string, log zerolog.Logger, onProgress transfer.ProgressFunc) (err error) {
	sess, err := d.opener.Open(ctx, p)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close session")
		}
	}()

	return transfer.NewWalker(sess, log).Upload(ctx, localPaths, remoteDir, onProgress)
}
