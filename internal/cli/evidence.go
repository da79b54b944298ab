package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/procurement-intake/internal/embedding"
	"github.com/joseph-ayodele/procurement-intake/internal/entity"
	"github.com/joseph-ayodele/procurement-intake/internal/evidence"
)

var (
	evidenceID     string
	evidenceGroup  int
	evidenceTitle  string
	evidenceVendor string
	evidenceVAT    string
	evidenceLines  []string
	evidenceLimit  int
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Maintain the labeled request history used for reranking",
}

var evidenceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Embed a labeled request and store it, replacing any earlier entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if evidenceID == "" || evidenceGroup <= 0 {
			return errors.New("--id and --group are required")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		text := embedding.RequestText(evidenceTitle, evidenceVendor, evidenceVAT, evidenceLines)
		vec, err := app.Embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		rec := evidence.Record{
			RequestID: evidenceID,
			Tag:       groupTag(evidenceGroup),
			Text:      text,
			Vector:    vec,
		}
		if err := evidence.Update(ctx, app.Evidence, rec); err != nil {
			return err
		}
		cmd.Printf("stored %s under group %d\n", evidenceID, evidenceGroup)
		return nil
	},
}

var evidenceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a request from the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if evidenceID == "" {
			return errors.New("--id is required")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		if err := app.Evidence.Delete(ctx, evidenceID); err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", evidenceID)
		return nil
	},
}

var evidenceRelabelCmd = &cobra.Command{
	Use:   "relabel",
	Short: "Move a stored request to another commodity group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if evidenceID == "" || evidenceGroup <= 0 {
			return errors.New("--id and --group are required")
		}
		ctx := cmd.Context()
		app, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		if err := app.Evidence.Relabel(ctx, evidenceID, groupTag(evidenceGroup)); err != nil {
			return err
		}
		cmd.Printf("relabeled %s to group %d\n", evidenceID, evidenceGroup)
		return nil
	},
}

var evidenceSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Show the stored requests most similar to a query",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		vec, err := app.Embedder.Embed(ctx, embedding.RequestText(evidenceTitle, evidenceVendor, evidenceVAT, evidenceLines))
		if err != nil {
			return err
		}
		tag := ""
		if evidenceGroup > 0 {
			tag = groupTag(evidenceGroup)
		}
		found, err := app.Evidence.Search(ctx, vec, evidenceLimit, tag)
		if err != nil {
			return err
		}
		if found == nil {
			found = []entity.EvidenceExample{}
		}
		return printJSON(cmd, found)
	},
}

func groupTag(id int) string {
	return entity.CommodityCandidate{ID: id}.Tag()
}

func init() {
	for _, c := range []*cobra.Command{evidenceAddCmd, evidenceDeleteCmd, evidenceRelabelCmd} {
		c.Flags().StringVar(&evidenceID, "id", "", "request id")
	}
	for _, c := range []*cobra.Command{evidenceAddCmd, evidenceRelabelCmd, evidenceSearchCmd} {
		c.Flags().IntVar(&evidenceGroup, "group", 0, "commodity group id")
	}
	for _, c := range []*cobra.Command{evidenceAddCmd, evidenceSearchCmd} {
		c.Flags().StringVar(&evidenceTitle, "title", "", "request title")
		c.Flags().StringVar(&evidenceVendor, "vendor", "", "vendor name")
		c.Flags().StringVar(&evidenceVAT, "vat", "", "vendor VAT id")
		c.Flags().StringArrayVar(&evidenceLines, "line", nil, "order line description, repeatable")
	}
	evidenceSearchCmd.Flags().IntVarP(&evidenceLimit, "limit", "k", 5, "number of results")

	evidenceCmd.AddCommand(evidenceAddCmd, evidenceDeleteCmd, evidenceRelabelCmd, evidenceSearchCmd)
	rootCmd.AddCommand(evidenceCmd)
}
