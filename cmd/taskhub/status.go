// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub/internal/control"
)

// statusServices are queried in this order. "" is the process as a whole.
var statusServices = []string{"", "database"}

// ServiceStatus is one row of the status report.
type ServiceStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type statusConfig struct {
	addr       string
	timeout    time.Duration
	jsonOutput bool
}

// newStatusCmd creates the status subcommand.
func newStatusCmd(flags *globalFlags) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running TaskHub process",
		Long: `Query the gRPC health listener of a running server. Exits non-zero
when the process is not serving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.addr == "" {
				loaded, err := flags.loadConfig(cmd)
				if err != nil {
					return err
				}
				cfg.addr = loaded.Control.Addr
			}
			if cfg.addr == "" {
				return oops.Code("CONFIG_INVALID").With("key", "control.addr").
					Errorf("control.addr is empty; the health listener is disabled")
			}
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "health listener address (default control.addr)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-query timeout")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx := cmd.Context()
	statuses := make([]ServiceStatus, 0, len(statusServices))
	for _, service := range statusServices {
		statuses = append(statuses, queryService(ctx, cfg.addr, service, cfg.timeout))
	}

	if cfg.jsonOutput {
		out, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(out)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	if statuses[0].Status != "SERVING" {
		return oops.Code("NOT_SERVING").With("addr", cfg.addr).Errorf("taskhub is not serving")
	}
	return nil
}

func queryService(ctx context.Context, addr, service string, timeout time.Duration) ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := service
	if name == "" {
		name = "taskhub"
	}
	status, err := control.Check(ctx, addr, service)
	if err != nil {
		return ServiceStatus{Service: name, Status: status.String(), Error: err.Error()}
	}
	return ServiceStatus{Service: name, Status: status.String()}
}

func formatStatusTable(statuses []ServiceStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE\tSTATUS\tERROR")
	_, _ = fmt.Fprintln(w, "-------\t------\t-----")
	for _, s := range statuses {
		errText := "-"
		if s.Error != "" {
			errText = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Service, s.Status, errText)
	}

	_ = w.Flush()
	return buf.String()
}

func formatStatusJSON(statuses []ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Wrapf(err, "marshal status")
	}
	return string(data), nil
}
