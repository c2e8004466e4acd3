package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"worklog/internal/core"
)

func newLogCmd(opts *ctlOptions) *cobra.Command {
	var date, slot string

	cmd := &cobra.Command{
		Use:   "log [text...]",
		Short: "Record what you worked on in a time slot",
		Long: "Record what you worked on in a time slot.\n" +
			"Without --slot the entry goes into the slot covering the current time.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore()
			if err != nil {
				return err
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			dateKey := date
			if dateKey == "" {
				dateKey = core.FormatDateKey(now)
			}

			label := core.SlotLabel(slot)
			if slot == "" {
				current, ok := core.CurrentSlot(now)
				if !ok {
					return fmt.Errorf("outside work hours (2:00 PM to 11:30 PM), pass --slot explicitly")
				}
				label = current
			}

			text := strings.Join(args, " ")
			if err := store.SetSlot(cmd.Context(), dateKey, label, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s %s: %s\n", dateKey, label, text)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to log against (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&slot, "slot", "", `time slot, e.g. "4:00 PM" (default the current slot)`)

	return cmd
}

func newHolidayCmd(opts *ctlOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:       "holiday [on|off]",
		Short:     "Mark or unmark a day as a holiday",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore()
			if err != nil {
				return err
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}

			flag := true
			if len(args) == 1 {
				switch args[0] {
				case "on":
					flag = true
				case "off":
					flag = false
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
			}

			dateKey := date
			if dateKey == "" {
				dateKey = core.FormatDateKey(time.Now().In(loc))
			}

			if err := store.SetHoliday(cmd.Context(), dateKey, flag); err != nil {
				return err
			}
			if flag {
				fmt.Fprintf(cmd.OutOrStdout(), "%s marked as holiday\n", dateKey)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is a working day again\n", dateKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to flag (YYYY-MM-DD, default today)")

	return cmd
}

func newShowCmd(opts *ctlOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [date]",
		Short: "Print one day's slots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore()
			if err != nil {
				return err
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}

			dateKey := core.FormatDateKey(time.Now().In(loc))
			if len(args) == 1 {
				if _, err := core.ParseDateKey(args[0]); err != nil {
					return err
				}
				dateKey = args[0]
			}

			day, err := store.Day(cmd.Context(), dateKey)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s", dateKey)
			if day.IsHoliday {
				fmt.Fprint(out, "  (holiday)")
			}
			fmt.Fprintln(out)
			for _, slot := range core.TimeSlots {
				text := day.Slots[slot]
				if text == "" {
					text = "-"
				}
				fmt.Fprintf(out, "  %-9s %s\n", slot, text)
			}
			fmt.Fprintf(out, "Completed %d/%d slots (%.1f%%)\n",
				day.CompletedSlots(), len(core.TimeSlots), day.CompletionRate())
			return nil
		},
	}

	return cmd
}

func newSummaryCmd(opts *ctlOptions) *cobra.Command {
	var year, month int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the monthly summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore()
			if err != nil {
				return err
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("invalid month %d", month)
			}

			summary, err := store.MonthSummary(cmd.Context(), year, month)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d\n", time.Month(month), year)
			fmt.Fprintf(out, "  Days logged:      %d\n", summary.TotalDays)
			fmt.Fprintf(out, "  Working days:     %d\n", summary.WorkingDays)
			fmt.Fprintf(out, "  Holidays:         %d\n", summary.HolidayDays)
			fmt.Fprintf(out, "  Productive hours: %.1f\n", summary.ProductiveHours)
			fmt.Fprintf(out, "  Avg hours/day:    %.1f\n", summary.AvgHoursPerDay)
			if len(summary.WorkAreas) > 0 {
				fmt.Fprintln(out, "  Work areas:")
				names := make([]string, 0, len(summary.WorkAreas))
				for name := range summary.WorkAreas {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "    %-14s %d\n", name, summary.WorkAreas[name])
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")

	return cmd
}

func newNowCmd(opts *ctlOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Print the slot covering the current time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := opts.location()
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			out := cmd.OutOrStdout()
			if slot, ok := core.CurrentSlot(now); ok {
				fmt.Fprintf(out, "%s (%.1fh slot, local time %s)\n", slot, slot.Hours(), now.Format("15:04"))
				return nil
			}
			fmt.Fprintf(out, "Outside work hours (local time %s)\n", now.Format("15:04"))
			return nil
		},
	}

	return cmd
}
