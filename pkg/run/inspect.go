/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/discferret/magpie/pkg/image"
)

//
func NewInspect() *Inspect {

	i := &Inspect{}
	i.Runner = *NewRunner(
		"inspect -i|--input {file} [-o|--output {text|yaml}]",
		"list the frames of an image",
		`
Use the inspect command to check an image file and list the frames it contains.
A truncated frame at the end of the image is reported as an error, after all
good frames have been listed.`,
		"", runnerHelpEpilogue, i.Run)

	i.AddBaseSettings()
	i.AddSetting(&i.Input, "input", "i", "", nil, "image file", true)
	i.AddSetting(&i.Format, "output", "o", "", "text",
		"output format, 'text' or 'yaml'", false)

	return i
}

//
type Inspect struct {
	Runner
	//
	Input  string
	Format string
}

//
func (i *Inspect) Run() error {

	i.ParseSettings()

	f, err := os.Open(i.Input)
	if err != nil {
		return err
	}
	defer f.Close()

	return inspect(f, os.Stdout, i.Format)
}

// imageSummary is what the inspect command reports about an image
type imageSummary struct {
	Magic  string         `yaml:"magic"`
	Frames []image.Header `yaml:"frames"`
	Bytes  uint64         `yaml:"bytes"`
}

//
func inspect(in io.Reader, out io.Writer, format string) error {

	if format != "text" && format != "yaml" && format != "" {
		return fmt.Errorf("unknown output format: %s", format)
	}

	r, err := image.NewReader(in, image.DefaultLimits())
	if err != nil {
		return err
	}

	sum := imageSummary{Magic: r.Magic()}
	var readErr error

	for {
		frame, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("after frame %d: %w", len(sum.Frames), err)
			break
		}
		sum.Frames = append(sum.Frames, frame.Header)
		sum.Bytes += uint64(frame.Length)
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(&sum); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		return readErr
	}

	p := printer
	p.Fprintf(out, "\nimage format %s\n\n", sum.Magic)
	for ix, h := range sum.Frames {
		p.Fprintf(out, "%5d  CHS %3d:%d:%d  %9d bytes\n",
			ix, h.Track, h.Head, h.Sector, h.Length)
	}
	p.Fprintf(out, "\n%d frames, %d bytes of sample data\n\n",
		len(sum.Frames), sum.Bytes)

	return readErr
}
