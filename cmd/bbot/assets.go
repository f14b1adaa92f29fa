package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnshumanSrivastavaGit/bbot/internal/config"
	"github.com/AnshumanSrivastavaGit/bbot/internal/database"
)

// NewAssetsCmd creates the assets command.
// It browses scans and discovered assets stored in the asset database.
func NewAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Browse scans and assets stored in the database",
		Long: `Assets lists past scans and the events they discovered.

Without flags, the events of the most recent scan are printed. Use
--list to enumerate scans, --scan-id to inspect a specific scan and
--hosts to collapse events to the distinct hosts they touched.

Examples:
  # List all recorded scans
  bbot assets --list

  # Show the events of the latest scan
  bbot assets

  # Show the events of a specific scan
  bbot assets --scan-id 5

  # Show the distinct hosts discovered by a scan
  bbot assets --scan-id 5 --hosts

  # Dump events as JSON lines
  bbot assets --json`,
		Args: cobra.NoArgs,
		RunE: runAssetsCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List recorded scans")
	cmd.Flags().Int64P("scan-id", "i", 0, "Scan to inspect (default: the latest)")
	cmd.Flags().Bool("hosts", false, "Print distinct hosts instead of events")
	cmd.Flags().BoolP("json", "j", false, "Output JSON lines")
	cmd.Flags().String("db-dir", "", "Asset database directory (default: XDG data directory)")

	return cmd
}

// runAssetsCmd executes the assets command.
func runAssetsCmd(cmd *cobra.Command, _ []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	adb, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open asset database (run a scan first?): %w", err)
	}
	defer adb.Close()

	ctx := cmd.Context()

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	if list {
		return listScans(cmd, adb, jsonOut)
	}

	scanID, err := cmd.Flags().GetInt64("scan-id")
	if err != nil {
		return err
	}
	if scanID == 0 {
		scanID, err = adb.LatestScanID(ctx)
		if err != nil {
			return err
		}
		if scanID == 0 {
			return errors.New("no scans recorded yet")
		}
	}

	hosts, err := cmd.Flags().GetBool("hosts")
	if err != nil {
		return err
	}
	if hosts {
		return listHosts(cmd, adb, scanID)
	}
	return listEvents(cmd, adb, scanID, jsonOut)
}

// listScans prints every recorded scan, newest first.
func listScans(cmd *cobra.Command, adb *database.AssetDB, jsonOut bool) error {
	scans, err := adb.ListScans(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, s := range scans {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	}

	if len(scans) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded.")
		return nil
	}

	for _, s := range scans {
		status := fmt.Sprintf("%d events", s.Events)
		if s.Running() {
			status = "running"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-30s  %s  %s  targets=%s\n",
			s.ID, s.Name, s.Started.Format("2006-01-02 15:04"), status,
			strings.Join(s.Targets, ","))
	}
	return nil
}

// listEvents prints the events of a single scan in discovery order.
func listEvents(cmd *cobra.Command, adb *database.AssetDB, scanID int64, jsonOut bool) error {
	events, err := adb.EventsForScan(cmd.Context(), scanID)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("[%s]\t%s\tdistance=%d", ev.Type, ev.Data, ev.ScopeDistance)
		if ev.Module != "" {
			line += "\tmodule=" + ev.Module
		}
		if len(ev.Tags) > 0 {
			line += "\ttags=" + strings.Join(ev.Tags, ",")
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// listHosts prints the distinct hosts a scan touched.
func listHosts(cmd *cobra.Command, adb *database.AssetDB, scanID int64) error {
	hosts, err := adb.HostsForScan(cmd.Context(), scanID)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		fmt.Fprintln(cmd.OutOrStdout(), h)
	}
	return nil
}
