package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"m7s.live/faststart"
	"m7s.live/faststart/pkg/config"
	mp4 "m7s.live/faststart/plugin/mp4/pkg"
)

type consoleNotifier struct{}

func (consoleNotifier) Message(message string) { fmt.Println("Info:", message) }
func (consoleNotifier) Error(message string)   { fmt.Println("Error:", message) }
func (consoleNotifier) Warning(message string) { fmt.Println("Warning:", message) }
func (consoleNotifier) Verbose(message string) { fmt.Println("Verbose:", message) }
func (consoleNotifier) UpdateProgress(current, total int64, label string) {
	if current == total {
		fmt.Printf("%s: %d/%d\n", label, current, total)
	}
}

func main() {
	conf := flag.String("c", "config.yaml", "config file")
	check := flag.Bool("check", false, "only report whether files need patching")
	probe := flag.Bool("probe", false, "print the structure of files")
	output := flag.String("o", "", "output file, single input only")
	verbose := flag.Bool("v", false, "print every step")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: faststart [-c config.yaml] [-check] [-probe] [-o out] files...")
		os.Exit(2)
	}

	if *probe {
		os.Exit(runProbe(flag.Args()))
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	runner, err := faststart.NewRunner(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	runner.CheckOnly = *check
	runner.Output = *output
	if *verbose {
		runner.Notify = consoleNotifier{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results, err := runner.Run(ctx, flag.Args())
	if err != nil {
		runner.Error("run", "error", err)
	}
	code := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			fmt.Printf("%s: %s, %v\n", res.Path, res.Status.Outcome, res.Err)
			code = 1
		case *check && res.Status.Outcome == mp4.OutcomeNeedsPatching:
			fmt.Printf("%s: SLOW %t FREE %t\n", res.Path, res.Status.SlowStart, res.Status.HasFreeAtoms)
		case res.Converted():
			fmt.Printf("%s: converted to %s\n", res.Path, res.Output)
		default:
			fmt.Printf("%s: %s\n", res.Path, res.Status.Outcome)
		}
	}
	if err != nil {
		code = 1
	}
	runner.Close()
	os.Exit(code)
}

func runProbe(paths []string) (code int) {
	for _, path := range paths {
		info, err := faststart.Probe(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			code = 1
			continue
		}
		fmt.Printf("%s: brand=%s boxes=%v moovFirst=%t fragmented=%t duration=%s\n", path, info.MajorBrand, info.Boxes, info.MoovFirst, info.Fragmented, info.Duration)
		for _, track := range info.Tracks {
			fmt.Printf("  track %d %s timescale=%d chunks=%d\n", track.ID, track.Handler, track.Timescale, len(track.ChunkOffsets))
		}
	}
	return
}
