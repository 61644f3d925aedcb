package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/dupes"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// progress draws a spinner line on stderr while the pipeline runs, or emits
// periodic PROGRESS lines when stderr is not a terminal.
type progress struct {
	start    time.Time
	interval time.Duration
	isTTY    bool
	stats    func() dupes.Stats
	stage    atomic.Value
	done     chan struct{}
	stopped  chan struct{}
}

func startProgress(stats func() dupes.Stats, interval time.Duration) *progress {
	p := &progress{
		start:    time.Now(),
		interval: interval,
		isTTY:    isTerminal(os.Stderr),
		stats:    stats,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	p.stage.Store("scan")
	go p.run()
	return p
}

func (p *progress) setStage(s string) {
	if s == "" {
		return
	}
	p.stage.Store(s)
}

func (p *progress) stop() {
	close(p.done)
	<-p.stopped
	if p.isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}
}

func (p *progress) run() {
	defer close(p.stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	lastNonTTY := time.Now()
	spinnerIdx := 0

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			stage, _ := p.stage.Load().(string)
			st := p.stats()
			elapsed := time.Since(p.start).Round(time.Millisecond)

			if p.isTTY {
				spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
				spinnerIdx++

				errStr := ""
				if st.Errors > 0 {
					errStr = fmt.Sprintf(" | %d skipped", st.Errors)
				}
				switch stage {
				case "scan":
					rate := float64(0)
					if elapsed.Seconds() > 0 {
						rate = float64(st.Files) / elapsed.Seconds()
					}
					fmt.Fprintf(os.Stderr, "\r\033[K%s Scanning... %s files | %.0f/sec | %s%s",
						spinner, humanize.Comma(st.Files), rate, elapsed, errStr)
				case "hash":
					fmt.Fprintf(os.Stderr, "\r\033[K%s Hashing... %s/%s partial | %s full | %s read | %s%s",
						spinner, humanize.Comma(st.PartialHashed), humanize.Comma(st.Candidates),
						humanize.Comma(st.FullHashed), humanize.Bytes(uint64(st.BytesRead)), elapsed, errStr)
				default:
					fmt.Fprintf(os.Stderr, "\r\033[K%s %s... | %s", spinner, stage, elapsed)
				}
			} else if p.interval > 0 && time.Since(lastNonTTY) >= p.interval {
				fmt.Fprintf(os.Stderr, "PROGRESS stage=%s files=%d candidates=%d partial=%d full=%d bytes=%s elapsed=%s errors=%d\n",
					stage, st.Files, st.Candidates, st.PartialHashed, st.FullHashed,
					humanize.Bytes(uint64(st.BytesRead)), elapsed, st.Errors)
				lastNonTTY = time.Now()
			}
		}
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
