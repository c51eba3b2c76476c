package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kisaansahayak/sahayak/pkg/models"
	"github.com/kisaansahayak/sahayak/pkg/server"
)

func newAskCmd(load loader) *cobra.Command {
	var (
		language  string
		location  string
		previous  string
		elaborate bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the terminal",
		Long: `Run a single question through the full advisory pipeline and print
the answer. Nothing is stored and no guest limit applies.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			chat := server.NewChatService(cfg, nil, nil)
			res, err := chat.Chat(cmd.Context(), nil, &models.ChatRequest{
				Message:        strings.Join(args, " "),
				Language:       models.Language(language),
				Location:       location,
				Elaborate:      elaborate,
				PreviousAnswer: previous,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Reply)
			if verbose {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "  pipeline: %s\n", res.Pipeline)
				fmt.Fprintf(out, "  provider: %s\n", res.Provider)
				fmt.Fprintf(out, "  model:    %s\n", res.ModelID)
				fmt.Fprintf(out, "  language: %s\n", res.Language)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", string(models.LanguageAuto), "reply language")
	cmd.Flags().StringVar(&location, "location", "", "farmer location, e.g. \"Nashik, Maharashtra\"")
	cmd.Flags().BoolVarP(&elaborate, "elaborate", "e", false, "expand the previous answer")
	cmd.Flags().StringVar(&previous, "previous", "", "previous answer to elaborate on")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print routing details")
	return cmd
}
