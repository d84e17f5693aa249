package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askDocs []string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Long: `Indexes the given documents (or the built-in seed set), answers a single
question and prints the answer with the documents it was based on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVar(&askDocs, "docs", nil, "files, directories or storage URLs to index")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Refused bool     `json:"refused"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cmd.ErrOrStderr(), askDocs)
	if err != nil {
		return err
	}
	defer a.Session.Close()

	ans, err := a.Session.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if askJSON {
		data, err := json.MarshalIndent(askOutput{Answer: ans.Text, Sources: ans.Sources, Refused: ans.Refused}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, s := range ans.Sources {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, s)
		}
	}
	return nil
}
