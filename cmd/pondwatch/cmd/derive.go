package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pondwatch/internal/pond"
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Compute feed, FCR and aeration figures",
	Long: `Computes the farm operation figures from pond and stock details.
Figures whose inputs are missing are skipped.

Examples:
  pondwatch derive --fish 1000 --weight 0.05 --stage Fingerling
  pondwatch derive --feed 150 --harvest 120 --stocking 40
  pondwatch derive --length 20 --width 10 --depth 1.5 --json
  pondwatch derive --feeding 07:30=0.25 --feeding 17:00=0.4 --feed-level 62`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var in pond.OperationInput
		in.NumberOfFish, _ = flags.GetInt("fish")
		in.FishWeight, _ = flags.GetFloat64("weight")
		in.FishStage, _ = flags.GetString("stage")
		in.TotalFeedUsed, _ = flags.GetFloat64("feed")
		in.HarvestWeight, _ = flags.GetFloat64("harvest")
		in.StockingWeight, _ = flags.GetFloat64("stocking")
		in.PondLength, _ = flags.GetFloat64("length")
		in.PondWidth, _ = flags.GetFloat64("width")
		in.PondDepth, _ = flags.GetFloat64("depth")
		in.FeedingSlots, _ = flags.GetInt("slots")

		entries, _ := flags.GetStringArray("feeding")
		for _, entry := range entries {
			feeding, err := parseFeeding(entry)
			if err != nil {
				return err
			}
			in.Feedings = append(in.Feedings, feeding)
		}
		if flags.Changed("feed-level") {
			level, _ := flags.GetFloat64("feed-level")
			in.FeedLevel = &level
		}

		details, err := pond.Derive(in)
		if err != nil {
			return err
		}
		if details.Empty() {
			return pond.ErrNoFigures
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := flags.GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(details)
		}

		if details.FeedRate != nil {
			fmt.Fprintf(out, "Feed rate:         %g%% of body weight per day\n", *details.FeedRate)
		}
		if details.FeedPerDay != nil {
			fmt.Fprintf(out, "Feed per day:      %.2f kg\n", *details.FeedPerDay)
		}
		if details.FeedPerSlot != nil {
			fmt.Fprintf(out, "Feed per feeding:  %.2f kg\n", *details.FeedPerSlot)
		}
		if details.FCR != nil {
			fmt.Fprintf(out, "FCR:               %.2f\n", *details.FCR)
			fmt.Fprintf(out, "  %s\n", details.FCRAdvice)
		}
		if details.AerationDuration != nil {
			fmt.Fprintf(out, "Aeration:          %.1f hours per day\n", *details.AerationDuration)
		}
		if len(details.Schedule) > 0 {
			fmt.Fprintf(out, "Schedule:          %.2f kg per day\n", *details.ScheduleTotal)
			for _, f := range details.Schedule {
				fmt.Fprintf(out, "  %s  %.2f kg\n", f.Time, f.Amount)
			}
		}
		if details.FeedLevelStatus != "" {
			fmt.Fprintf(out, "Feed level:        %s\n", details.FeedLevelStatus)
		}
		return nil
	},
}

// parseFeeding reads a schedule entry written as HH:MM=kg
func parseFeeding(entry string) (pond.Feeding, error) {
	at, amount, ok := strings.Cut(entry, "=")
	if !ok {
		return pond.Feeding{}, fmt.Errorf("feeding %q: want HH:MM=kg", entry)
	}
	kg, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return pond.Feeding{}, fmt.Errorf("feeding %q: %w", entry, err)
	}
	return pond.Feeding{Time: strings.TrimSpace(at), Amount: kg}, nil
}

func init() {
	rootCmd.AddCommand(deriveCmd)
	f := deriveCmd.Flags()
	f.Int("fish", 0, "number of fish")
	f.Float64("weight", 0, "average fish weight (kg)")
	f.String("stage", "", "growth stage: Fry, Fingerling, Juvenile, Adult")
	f.Float64("feed", 0, "total feed used (kg)")
	f.Float64("harvest", 0, "harvest weight (kg)")
	f.Float64("stocking", 0, "stocking weight (kg)")
	f.Float64("length", 0, "pond length (m)")
	f.Float64("width", 0, "pond width (m)")
	f.Float64("depth", 0, "pond depth (m)")
	f.Int("slots", 0, "feedings per day, to split the daily feed")
	f.StringArray("feeding", nil, "scheduled feeding as HH:MM=kg (repeatable)")
	f.Float64("feed-level", 0, "feeder hopper level in percent")
	f.Bool("json", false, "output as JSON")
}
