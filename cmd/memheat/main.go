// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command memheat renders an SVG heatmap of per-source-line sample
// counts from a collector result stream, adapted from the memory
// load latency heatmap this tool originally drew from a perf.data
// file: the bucketed-histogram-by-latency rendering is replaced with
// one row per (file, line) shaded by how many samples landed there,
// since the collector's Timeslice records carry discrete symbolized
// frames rather than a continuous per-sample weight.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path"
	"sort"

	"github.com/alexprofiler/collector/scale"
)

// lineStat is one (file, line) pair's accumulated sample count.
type lineStat struct {
	file  string
	line  int
	count int

	yCoord float64
}

// resultRecord is the subset of a trace.Timeslice record this tool
// reads: the kind discriminator and the symbolized stack frames.
type resultRecord struct {
	Kind        string `json:"kind"`
	StackFrames []struct {
		FileName string `json:"file_name"`
		Line     int    `json:"line"`
	} `json:"stack_frames"`
}

func main() {
	var (
		flagInput = flag.String("i", "result.txt", "collector result stream file")
		flagLimit = flag.Int("limit", 30, "output top N files")
		flagPNG   = flag.String("png", "", "also write a rasterized heatmap to this path")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	counts, err := readLineCounts(*flagInput)
	if err != nil {
		log.Fatal(err)
	}

	stats := make([]*lineStat, 0, len(counts))
	for key, count := range counts {
		stats = append(stats, &lineStat{file: key.file, line: key.line, count: count})
	}
	sort.Sort(lineStatSorter{stats, fileWeight(stats)})

	if *flagLimit > 0 {
		stats = limitFiles(stats, *flagLimit)
	}

	maxCount := 0
	for _, s := range stats {
		if s.count > maxCount {
			maxCount = s.count
		}
	}
	if *flagPNG != "" {
		if err := renderPNG(*flagPNG, stats, maxCount); err != nil {
			log.Fatal(err)
		}
	}

	wscale := scale.NewPower([]float64{0, float64(maxCount)}, 1/2.0)

	const (
		marginTop      = 45
		cellHeight     = 14
		barWidth       = 300
		lineLabelWidth = 30
		groupWidth     = 20
		groupGap       = 5

		marginLeft  = groupWidth + groupGap
		marginRight = 300

		sourceLeft = marginLeft + barWidth
	)

	y := marginTop
	for i, s := range stats {
		if i != 0 && s.file != stats[i-1].file {
			y += cellHeight
		}
		s.yCoord = float64(y)
		y += cellHeight
	}

	svg := NewSVG(os.Stdout, sourceLeft+marginRight, y)

	{
		lOpts := TextOpts{Anchor: AnchorMiddle}
		svg.SetFill(color.Black)
		svg.Text(marginLeft+barWidth/2, marginTop-20, lOpts, "sample count by source line")
		svg.SetFill(nil)
	}

	svg.NewPath()
	for _, idxs := range sections(len(stats), func(i int) bool {
		return stats[i].file != stats[i-1].file
	}) {
		first, last := stats[idxs[0]], stats[idxs[1]-1]
		top, bot := first.yCoord, last.yCoord+cellHeight

		lOpts := TextOpts{Anchor: AnchorMiddle, Rotate: -90}
		svg.SetFill(color.Gray{Y: 192})
		svg.Rect(marginLeft-groupWidth-groupGap, top, groupWidth, bot-top).FillPreserve().Clip()
		svg.SetFill(color.Black)
		svg.Text(marginLeft-groupWidth/2-groupGap, (top+bot)/2, lOpts, path.Base(first.file))
		svg.ResetClip()
	}
	svg.SetStroke(color.Black)
	svg.Stroke()
	svg.SetStroke(nil)

	for _, s := range stats {
		if s.count > 0 {
			shade := wscale.Of(float64(s.count))
			svg.SetFill(color.NRGBA{R: 255, G: 0, B: 0, A: uint8(255 * shade)})
			svg.Rect(float64(marginLeft), s.yCoord, barWidth*shade, cellHeight).Fill()
		}
		lOpts := TextOpts{Anchor: AnchorStart, Baseline: BaselineMiddle, FontSize: 10}
		svg.SetFill(color.Black)
		svg.Text(float64(sourceLeft+lineLabelWidth), s.yCoord+cellHeight/2, lOpts,
			fmt.Sprintf("%d: %s", s.line, getLine(s.file, s.line)))
		svg.SetFill(nil)

		svg.Rect(marginLeft, s.yCoord, barWidth, cellHeight).TooltipHighlight(fmt.Sprintf("%s:%d (%d samples)", s.file, s.line, s.count))
	}
	svg.Done()
}

type lineKey struct {
	file string
	line int
}

// readLineCounts tallies one hit per stack frame carrying a file/line
// across every Timeslice record in the result stream.
func readLineCounts(path string) (map[lineKey]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counts := make(map[lineKey]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec resultRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Kind != "timeslice" {
			continue
		}
		for _, frame := range rec.StackFrames {
			if frame.FileName == "" || frame.Line == 0 {
				continue
			}
			counts[lineKey{file: frame.FileName, line: frame.Line}]++
		}
	}
	return counts, scanner.Err()
}

func fileWeight(stats []*lineStat) map[string]int {
	weight := make(map[string]int)
	for _, s := range stats {
		weight[s.file] += s.count
	}
	return weight
}

type lineStatSorter struct {
	lines  []*lineStat
	weight map[string]int
}

func (s lineStatSorter) Len() int      { return len(s.lines) }
func (s lineStatSorter) Swap(i, j int) { s.lines[i], s.lines[j] = s.lines[j], s.lines[i] }
func (s lineStatSorter) Less(i, j int) bool {
	fi, fj := s.lines[i].file, s.lines[j].file
	if s.weight[fi] != s.weight[fj] {
		return s.weight[fi] > s.weight[fj]
	}
	if fi != fj {
		return fi < fj
	}
	return s.lines[i].line < s.lines[j].line
}

func limitFiles(stats []*lineStat, limit int) []*lineStat {
	seen := 0
	for i, s := range stats {
		if i == 0 || s.file != stats[i-1].file {
			if seen == limit {
				return stats[:i]
			}
			seen++
		}
	}
	return stats
}

func sections(count int, newGroup func(int) bool) [][2]int {
	var out [][2]int
	if count == 0 {
		return out
	}
	start := 0
	for i := 1; i < count; i++ {
		if newGroup(i) {
			out = append(out, [2]int{start, i})
			start = i
		}
	}
	out = append(out, [2]int{start, count})
	return out
}

func getLine(path string, line int) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for i := 0; i < line && scanner.Scan(); i++ {
	}
	if err := scanner.Err(); err != nil {
		return ""
	}
	return scanner.Text()
}
