// Command coredump is a diagnostic tool that walks a coremap snapshot
// and emits a pprof-compatible heap profile, one sample per owner tag
// (each owning pid, plus the Free and Kernel sentinels), so `go tool
// pprof` can render which process holds how much simulated physical RAM. It is the kernel-runtime
// analogue of the teacher's own CLI tools (mkfs/mkfs.go builds a disk
// image offline; kernel/chentry.go patches an ELF header offline) —
// coredump likewise runs outside the kernel itself, consuming a
// frame/owner snapshot rather than a live kernel.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/pprof/profile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"teachkernel/config"
	"teachkernel/coremap"
)

func main() {
	numPages := flag.Int("pages", 4096, "number of simulated physical pages to report on")
	out := flag.String("out", "", "write a pprof profile.proto snapshot to this path (optional)")
	flag.Parse()

	cm := coremap.Bootstrap(*numPages)
	report(cm, *out)
}

// report prints a human-readable per-owner frame count and, if out is
// non-empty, writes a pprof snapshot of the same data.
func report(cm *coremap.CoreMap_t, out string) {
	counts := make(map[coremap.Owner]int)
	for ppage := 0; ppage < cm.NumPages(); ppage++ {
		counts[cm.OwnerOf(ppage)]++
	}

	p := message.NewPrinter(language.English)
	p.Printf("coremap: %d pages (%d bytes/page)\n", cm.NumPages(), config.PageSize)
	for owner, n := range counts {
		p.Printf("  owner %6d: %d pages (%d bytes)\n", owner, n, n*config.PageSize)
	}

	if out == "" {
		return
	}
	if err := writeProfile(counts, out); err != nil {
		log.Fatalf("coredump: %v", err)
	}
}

// writeProfile renders counts as a pprof heap-style profile: one
// sample per owner, whose single location/function is a synthetic
// "owner(<pid>)" frame, and whose value is the page count.
func writeProfile(counts map[coremap.Owner]int, path string) error {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "pages", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "pages", Unit: "count"},
		Period:     1,
	}

	var nextID uint64 = 1
	for owner, n := range counts {
		fn := &profile.Function{
			ID:   nextID,
			Name: fmt.Sprintf("owner(%d)", owner),
		}
		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn}},
		}
		nextID++

		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(n)},
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return prof.Write(f)
}
