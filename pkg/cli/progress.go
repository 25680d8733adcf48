package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/quocson95/ftpfleet/pkg/fanout"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// fleetProgress renders one bar per endpoint on a terminal and plain status
// lines otherwise. It implements both fanout sinks.
type fleetProgress struct {
	out      io.Writer
	progress *mpb.Progress
	bars     map[string]*hostBar

	mu sync.Mutex // serializes plain-text output
}

type hostBar struct {
	bar *mpb.Bar

	mu     sync.Mutex
	status string
}

func (b *hostBar) setStatus(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

func (b *hostBar) getStatus() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newFleetProgress(out io.Writer, profiles []storage.Profile) *fleetProgress {
	fp := &fleetProgress{out: out}
	if !isTerminal(out) {
		return fp
	}

	fp.progress = mpb.New(
		mpb.WithOutput(out),
		mpb.WithRefreshRate(200*time.Millisecond),
		mpb.WithWidth(60),
	)
	fp.bars = make(map[string]*hostBar, len(profiles))

	width := 0
	for _, p := range profiles {
		width = max(width, len(p.DisplayName))
	}
	for _, p := range profiles {
		if _, dup := fp.bars[p.Host]; dup {
			continue
		}
		hb := &hostBar{status: "waiting"}
		hb.bar = fp.progress.New(0,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(p.DisplayName, decor.WC{W: width + 1, C: decor.DindentRight}),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(decor.Statistics) string { return hb.getStatus() }),
			),
		)
		fp.bars[p.Host] = hb
	}
	return fp
}

func (fp *fleetProgress) Progress(e fanout.ProgressEvent) {
	if fp.progress == nil {
		return
	}
	hb, ok := fp.bars[e.Host]
	if !ok {
		return
	}
	if e.BytesTotal > 0 {
		hb.bar.SetTotal(int64(e.BytesTotal), false)
	}
	hb.bar.SetCurrent(int64(e.BytesDone))
}

func (fp *fleetProgress) Status(e fanout.StatusEvent) {
	if fp.progress == nil {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		fmt.Fprintf(fp.out, "%s: %s\n", e.Host, e.Message)
		return
	}

	hb, ok := fp.bars[e.Host]
	if !ok {
		return
	}
	hb.setStatus(e.Message)
	switch {
	case e.Code == fanout.Success:
		hb.bar.SetTotal(-1, true)
	case e.Code == fanout.Failed, e.Message == fanout.MsgSkipped:
		hb.bar.Abort(false)
	}
}

// Wait flushes the bars; call it after the run finished
func (fp *fleetProgress) Wait() {
	if fp.progress != nil {
		fp.progress.Wait()
	}
}
