package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/delaneyj/statetree/tracked"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	widthsKey  = "widths"
	depthsKey  = "depths"
	profileKey = "profile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure set and notify latency of tracked stores",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Samples per shape",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  widthsKey,
				Usage: "Comma separated column counts",
				Value: "1,10,100,1000",
			},
			&cli.StringFlag{
				Name:  depthsKey,
				Usage: "Comma separated column depths",
				Value: "1,10,100",
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: benchmark,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func benchmark(ctx context.Context, cmd *cli.Command) error {
	if name := cmd.String(profileKey); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	ww, err := parseSizes(cmd.String(widthsKey))
	if err != nil {
		return fmt.Errorf("%s: %w", widthsKey, err)
	}
	hh, err := parseSizes(cmd.String(depthsKey))
	if err != nil {
		return fmt.Errorf("%s: %w", depthsKey, err)
	}
	iters := int(cmd.Uint(itersKey))

	log.Printf("warming up")
	for _, sc := range scenarios {
		if _, err := runScenario(sc, ww[:1], hh[:1], iters); err != nil {
			return err
		}
	}

	for _, sc := range scenarios {
		tbl, err := runScenario(sc, ww, hh, iters)
		if err != nil {
			return err
		}
		tbl.Render()
	}
	return nil
}

func parseSizes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("size %d must be positive", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sizes in %q", s)
	}
	return out, nil
}

// scenario mutates the tree once per sample. i is the sample number.
type scenario struct {
	title string
	op    func(b *bench, i int) error
	// notified is how many mounts one op must re-render
	notified func(w int) int
}

var scenarios = []scenario{
	{
		title:    "leaf set",
		op:       func(b *bench, i int) error { return b.setLeaf(i%b.width, i) },
		notified: func(int) int { return 1 },
	},
	{
		title: "batch all leaves",
		op: func(b *bench, i int) error {
			_, err := b.store.Root().Batch(func(*tracked.State) (any, error) {
				for col := 0; col < b.width; col++ {
					if err := b.setLeaf(col, i); err != nil {
						return nil, err
					}
				}
				return nil, nil
			}, nil)
			return err
		},
		notified: func(w int) int { return w },
	},
	{
		title:    "unread sibling",
		op:       func(b *bench, i int) error { return b.store.Root().Field("idle").Set(i) },
		notified: func(int) int { return 0 },
	},
}

func runScenario(sc scenario, ww, hh []int, iters int) (table.Writer, error) {
	tbl := table.NewWriter()
	tbl.SetTitle(sc.title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			b, err := newBench(w, h)
			if err != nil {
				return nil, err
			}
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := sc.op(b, i+1); err != nil {
					return nil, err
				}
				tach.AddTime(time.Since(start))

				// every consumer reads again, as a render would
				if err := b.readAll(); err != nil {
					return nil, err
				}
			}
			if want := sc.notified(w) * iters; b.renders != want {
				return nil, fmt.Errorf("%s %dx%d: %d renders, want %d", sc.title, w, h, b.renders, want)
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("%s: %d * %d", sc.title, w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}
	return tbl, nil
}
