// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// renderPNG rasterizes the same (file, line, count) rows the SVG
// heatmap draws, as a flat-shaded raster image instead of markup.
// golang/freetype's glyph rasterizer needs an embedded TTF this
// exercise has no font asset for (see DESIGN.md); x/image's
// basicfont/font.Drawer cover the same label-rendering concern without
// one.
func renderPNG(path string, stats []*lineStat, maxCount int) error {
	const (
		cellHeight = 14
		barWidth   = 300
		labelGap   = 10
		width      = barWidth + labelGap + 400
	)

	height := len(stats)*cellHeight + 10
	if height < cellHeight {
		height = cellHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, s := range stats {
		y := i*cellHeight + 5
		shade := uint8(0)
		if maxCount > 0 {
			shade = uint8(255 * s.count / maxCount)
		}
		bar := image.Rect(0, y, barWidth, y+cellHeight-1)
		draw.Draw(img, bar, image.NewUniform(color.RGBA{R: 255, G: 255 - shade, B: 255 - shade, A: 255}), image.Point{}, draw.Src)

		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(barWidth+labelGap, y+cellHeight-3),
		}
		d.DrawString(lineLabel(s))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func lineLabel(s *lineStat) string {
	return fmt.Sprintf("%s:%d (%d)", s.file, s.line, s.count)
}
