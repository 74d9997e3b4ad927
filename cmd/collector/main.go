// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command collector is the sampling profiler's CLI entry point: it
// launches a subject process under the control-plane protocol and
// drives the collection loop, or enumerates the built-in event
// presets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexprofiler/collector/collector"
	"github.com/alexprofiler/collector/control"
	"github.com/alexprofiler/collector/perfevent"
	"github.com/alexprofiler/collector/symbol"
)

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ce *collector.Error
		if asCollectorError(err, &ce) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(int(ce.Code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(collector.InternalError))
	}
}

func asCollectorError(err error, target **collector.Error) bool {
	for err != nil {
		if ce, ok := err.(*collector.Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "collector",
		Short: "A sampling performance profiler",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML configuration overlay")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListPresetsCmd())
	return root
}

func newListPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-presets",
		Short: "Enumerate the built-in event presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(perfevent.Presets))
			for name := range perfevent.Presets {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s: %v\n", name, perfevent.Presets[name])
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <subject> [args...]",
		Short: "Launch a subject process and collect samples from it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollector(args[0], args[1:])
		},
	}
}

// configOverlay is the subset of Config the --config YAML file may
// override, per spec §7 ("--config FILE optional YAML overlay under
// env vars").
type configOverlay struct {
	Period     *uint64  `yaml:"period"`
	Events     []string `yaml:"events"`
	Presets    []string `yaml:"presets"`
	ResultFile *string  `yaml:"result_file"`
}

func applyOverlay(cfg collector.Config, path string) (collector.Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &collector.Error{Code: collector.EnvError, Err: err}
	}
	var overlay configOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, &collector.Error{Code: collector.EnvError, Err: err}
	}
	if overlay.Period != nil && os.Getenv("COLLECTOR_PERIOD") == "" {
		cfg.Period = *overlay.Period
	}
	if overlay.Events != nil && os.Getenv("COLLECTOR_EVENTS") == "" {
		cfg.Events = overlay.Events
	}
	if overlay.Presets != nil && os.Getenv("COLLECTOR_PRESETS") == "" {
		cfg.Presets = overlay.Presets
	}
	if overlay.ResultFile != nil && os.Getenv("COLLECTOR_RESULT_FILE") == "" {
		cfg.ResultFile = *overlay.ResultFile
	}
	return cfg, nil
}

func runCollector(subject string, subjectArgs []string) error {
	cfg, err := collector.LoadConfig()
	if err != nil {
		return err
	}
	cfg, err = applyOverlay(cfg, configFile)
	if err != nil {
		return err
	}

	mm, err := symbol.Build(nil)
	if err != nil {
		return &collector.Error{Code: collector.DebugSymbolsFile, Err: err}
	}

	resultFile, err := os.Create(cfg.ResultFile)
	if err != nil {
		return &collector.Error{Code: collector.ResultFileError, Err: err}
	}
	defer resultFile.Close()

	collectorEnd, subjectEnd, err := control.NewSocketPair()
	if err != nil {
		return &collector.Error{Code: collector.InternalError, Err: err}
	}
	defer collectorEnd.Close()

	c, err := collector.New(cfg, collectorEnd, mm, resultFile)
	if err != nil {
		return err
	}

	cmd := exec.Command(subject, subjectArgs...)
	cmd.Stdout, cmd.Stderr, cmd.Stdin = os.Stdout, os.Stderr, os.Stdin
	cmd.ExtraFiles = []*os.File{os.NewFile(uintptr(subjectEnd.FD()), "control-socket")}
	cmd.Env = append(os.Environ(), "COLLECTOR_CONTROL_FD=3")
	if err := cmd.Start(); err != nil {
		return &collector.Error{Code: collector.ExecutableFile, Err: err}
	}
	subjectEnd.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	runErr := c.Run(ctx)

	_ = cmd.Wait()
	return runErr
}
