// Copyright (C) 2024 ANARI-SDK Contributors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/anari-sdk/corerun/internal/config"
	"github.com/anari-sdk/corerun/internal/debugdevice"
	"github.com/anari-sdk/corerun/internal/device"
	"github.com/anari-sdk/corerun/internal/serializer"
	"github.com/anari-sdk/corerun/internal/status"
)

// newRunCommand builds the "run" subcommand: load a scene script, drive it
// through a debug-wrapped cpudevice, and optionally dump a code trace.
func newRunCommand() *cobra.Command {
	var traceMode string
	var traceDir string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <scene.yaml>",
		Short: "Replay a scene script against a debug-wrapped reference device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := LoadScene(args[0])
			if err != nil {
				return err
			}

			cfg := config.New(
				config.WithWrappedDevice(device.NewCPUDevice()),
				config.WithStatusFunc(statusLogger(cmd.ErrOrStderr(), quiet)),
				config.WithTraceMode(config.TraceMode(traceMode)),
				config.WithTraceDir(traceDir),
			)

			dd := debugdevice.New(cfg.WrappedDevice())
			dd.SetStatusFunc(cfg.StatusFunc())
			if cfg.Tracing() {
				dd.SetSerializer(serializer.NewCodeSerializer())
			}

			runErr := run(context.Background(), dd, scene, cmd.OutOrStdout())

			source, data, shutdownErr := dd.Shutdown()
			if runErr != nil {
				return runErr
			}
			if shutdownErr != nil {
				return errors.Wrap(shutdownErr, "closing trace")
			}
			if cfg.Tracing() {
				return writeTrace(cfg.TraceDir(), source, data)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&traceMode, "trace", "", `trace mode: "" (none) or "code"`)
	cmd.Flags().StringVar(&traceDir, "trace-dir", ".", "directory to write out.go/data.bin into when tracing")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress status records below warning severity")

	return cmd
}

// statusLogger returns a status.Func that writes every record to w,
// matching the teacher's core/log severity-tagged line format. Records
// below status.SeverityWarning are dropped when quiet is set.
func statusLogger(w io.Writer, quiet bool) status.Func {
	return func(r status.Record) {
		if quiet && r.Severity > status.SeverityWarning {
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", r.Severity, r.Message)
	}
}

func writeTrace(dir string, source, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating trace directory %q", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "out.go"), source, 0o644); err != nil {
		return errors.Wrap(err, "writing out.go")
	}
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), data, 0o644); err != nil {
		return errors.Wrap(err, "writing data.bin")
	}
	return nil
}
