package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchai/api/pkg/searchclient"
)

func (a *app) searchCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and summarize the top results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return searchclient.ErrEmptyQuery
			}
			out := cmd.OutOrStdout()
			c := a.client()

			if async {
				submitted, err := c.Submit(cmd.Context(), query)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Search started: %s\n", submitted.SearchID)
				return nil
			}

			result, err := c.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			switch result.Status {
			case searchclient.StatusCompleted:
				printSummary(out, query, result.Sites, result.Summary)
			case searchclient.StatusProcessing, searchclient.StatusCancelling:
				fmt.Fprintf(out, "Search %s is still %s. Check it with: searchctl status %s\n", result.SearchID, result.Status, result.SearchID)
			case searchclient.StatusCancelled:
				fmt.Fprintln(out, "Search cancelled")
			default:
				return fmt.Errorf("search failed: %s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "return the search id without waiting")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the progress of a search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  %d%%\n", titleStyle.Render(status.Query), status.Status, status.Progress)
			if status.CurrentStep != "" {
				fmt.Fprintln(out, dimStyle.Render(status.CurrentStep))
			}
			if status.Error != nil {
				fmt.Fprintf(out, "Error: %s\n", *status.Error)
			}
			return nil
		},
	}
}

func (a *app) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Search %s: %s\n", res.SearchID, res.Status)
			return nil
		},
	}
}

// watchCmd submits a search and follows it until it finishes. An interrupt
// cancels the search.
func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <query>",
		Short: "Start a search and follow its progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
}

func (a *app) watch(ctx context.Context, out io.Writer, query string) error {
	updates := make(chan struct{}, 1)
	tracker := searchclient.NewTracker(a.client(),
		searchclient.WithPollInterval(a.pollInterval),
		searchclient.WithOnChange(func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		}),
	)
	defer tracker.Close()

	id, err := tracker.Submit(ctx, query)
	if err != nil {
		return err
	}

	last := ""
	for {
		select {
		case <-ctx.Done():
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracker.Cancel(cancelCtx, id); err != nil {
				return fmt.Errorf("cancel search: %w", err)
			}
			fmt.Fprintln(out, "Search cancelled")
			return nil
		case <-updates:
		}

		entry, ok := tracker.Entry(id)
		if !ok {
			if reason, _ := tracker.Dropped(id); reason == searchclient.DroppedExpired {
				return errors.New("search expired or was removed on the server")
			}
			fmt.Fprintln(out, "Search cancelled")
			return nil
		}
		if label := entry.Label(); label != last {
			searchclient.RenderEntries(out, []searchclient.Entry{entry})
			last = label
		}

		switch entry.State {
		case searchclient.EntryCompleted:
			result, found := findResult(tracker, id)
			if !found {
				select {
				case <-updates:
				case <-time.After(5 * time.Second):
				}
				result, found = findResult(tracker, id)
			}
			if found {
				printSummary(out, result.Query, result.Sites, result.Summary)
			}
			return nil
		case searchclient.EntryFailed:
			return errors.New(entry.Label())
		}
	}
}

func findResult(tracker *searchclient.Tracker, searchID string) (searchclient.Result, bool) {
	for _, r := range tracker.Results() {
		if r.SearchID == searchID {
			return r, true
		}
	}
	return searchclient.Result{}, false
}

func printSummary(out io.Writer, query string, sites []string, summary string) {
	fmt.Fprintln(out, titleStyle.Render(query))
	for _, site := range sites {
		fmt.Fprintln(out, dimStyle.Render("  "+site))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, summary)
}
