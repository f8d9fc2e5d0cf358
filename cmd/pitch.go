package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maim-pdmr/spiz/internal/pitch"
)

var pitchTopN int

var pitchCmd = &cobra.Command{
	Use:   "pitch [file]",
	Short: "Suggest journalists for a press release (file or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pitch"); err != nil {
			return err
		}

		var release []byte
		var err error
		if len(args) == 1 {
			release, err = os.ReadFile(args[0])
		} else {
			release, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initAnthropic()
		if err != nil {
			return err
		}

		topN := pitchTopN
		if topN == 0 {
			topN = cfg.Pitch.TopN
		}
		advisor := pitch.New(st, client, cfg.Pitch.Model, topN, nil)

		result, err := advisor.Suggest(ctx, string(release))
		if err != nil {
			return err
		}

		fmt.Printf("Tema: %s\nSettori: %v\n\n", result.Analysis.Theme, result.Analysis.Sectors)
		for i, s := range result.Suggestions {
			fmt.Printf("%2d. %s (%s) - score %.2f, %d articoli\n    %s\n",
				i+1, s.Name, s.Source, s.Score, s.Articles, s.Explanation)
		}
		return nil
	},
}

func init() {
	pitchCmd.Flags().IntVar(&pitchTopN, "top", 0, "number of suggestions (default from config)")
	rootCmd.AddCommand(pitchCmd)
}
