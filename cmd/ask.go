package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maim-pdmr/spiz/internal/answer"
)

var askClient string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question about the press archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ask"); err != nil {
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
		svc, err := initAnswer(st, client)
		if err != nil {
			return err
		}

		resp, err := svc.Ask(ctx, answer.Request{
			Question: strings.Join(args, " "),
			Client:   askClient,
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askClient, "client", "", "restrict the corpus to one client's coverage")
	rootCmd.AddCommand(askCmd)
}
