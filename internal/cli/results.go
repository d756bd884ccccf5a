package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchai/api/pkg/searchclient"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored search results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.client().Results(cmd.Context())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results yet")
				return nil
			}
			searchclient.RenderResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete [query]",
		Short: "Delete stored results by exact query or by --id",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if (id == "") == (query == "") {
				return errors.New("pass either a query or --id")
			}

			c := a.client()
			var (
				res *searchclient.Deleted
				err error
			)
			if id != "" {
				res, err = c.DeleteResult(cmd.Context(), id)
			} else {
				res, err = c.DeleteQuery(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "delete a single result by id")
	return cmd
}

func (a *app) sourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source <url>",
		Short: "Show the scraped content of a cited page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client().SourceDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(detail.URL))
			if detail.ArchiveURL != "" {
				fmt.Fprintln(out, dimStyle.Render("archived: "+detail.ArchiveURL))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, detail.Content)
			return nil
		},
	}
}

func (a *app) askCmd() *cobra.Command {
	var original string
	cmd := &cobra.Command{
		Use:   "ask --query <search> <question>",
		Short: "Ask a follow-up question about a stored search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, err := a.client().AskContext(cmd.Context(), original, strings.Join(args, " "))
			if err != nil {
				return err
			}
			searchclient.RenderAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&original, "query", "q", "", "the original search query")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
