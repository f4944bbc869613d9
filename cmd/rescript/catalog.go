package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/internal/domain"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newCatalogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect recorded runs and downloads",
	}
	cmd.AddCommand(newCatalogRunsCmd(c), newCatalogDownloadsCmd(c))
	return cmd
}

func newCatalogRunsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.store == nil {
				return fmt.Errorf("%w: catalog is disabled", domain.ErrInvalidParameter)
			}
			runs, err := c.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newCatalogDownloadsCmd(c *cli) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "List downloaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.store == nil {
				return fmt.Errorf("%w: catalog is disabled", domain.ErrInvalidParameter)
			}
			dls, err := c.store.ListDownloads(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return renderDownloads(cmd.OutOrStdout(), dls)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only list downloads of this run id")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderRuns(w io.Writer, runs []domain.Run) error {
	t := newTable("RUN", "ACTION", "STATUS", "STARTED", "ELAPSED", "RECORDS", "ERROR")
	for _, r := range runs {
		elapsed := ""
		if !r.FinishedAt.IsZero() {
			elapsed = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.Row(
			r.ID,
			r.Action,
			string(r.Status),
			r.StartedAt.Local().Format(time.DateTime),
			elapsed,
			formatRecords(r.Records),
			r.Error,
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderDownloads(w io.Writer, dls []domain.Download) error {
	t := newTable("RUN", "URL", "BYTES", "SHA256", "ATTEMPTS", "FETCHED")
	for _, d := range dls {
		sum := d.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		t.Row(
			d.RunID,
			d.URL,
			strconv.FormatInt(d.Bytes, 10),
			sum,
			strconv.Itoa(d.Attempts),
			d.FetchedAt.Local().Format(time.DateTime),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatRecords(records map[string]int) string {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, records[name])
	}
	return strings.Join(parts, " ")
}
