package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/setlistapp/setlist/internal/analytics"
	"github.com/setlistapp/setlist/internal/stage"
	"github.com/setlistapp/setlist/internal/store"
	"github.com/setlistapp/setlist/internal/syncer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSessionCmd() *cobra.Command {
	var (
		configPath string
		statePath  string
		apiBase    string
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Work with the local event session",
		Long: `Manages the local-first event session: a JSON snapshot on disk that is
the source of truth, mirrored to the API on a best-effort basis. Every
subcommand works offline; mirroring failures never block a mutation.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "setlist.yaml", "path to Setlist config file")
	cmd.PersistentFlags().StringVar(&statePath, "state", "", "snapshot file path (default from config)")
	cmd.PersistentFlags().StringVar(&apiBase, "api", "", "API base URL (default from config)")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "skip the remote mirror and telemetry")

	open := func() (*store.Store, *analytics.Batcher, error) {
		return openSession(configPath, statePath, apiBase, offline)
	}

	cmd.AddCommand(newSessionStatusCmd(open))
	cmd.AddCommand(newSessionCreateCmd(open))
	cmd.AddCommand(newSessionAnswerCmd(open))
	cmd.AddCommand(newSessionSwipeCmd(open))
	cmd.AddCommand(newSessionRequestCmd(open))
	cmd.AddCommand(newSessionStageCmd(open))
	cmd.AddCommand(newSessionUpsellCmd(open))
	cmd.AddCommand(newSessionResumeCmd(&configPath, &statePath, &apiBase))
	return cmd
}

type openFunc func() (*store.Store, *analytics.Batcher, error)

// openSession builds the local store with its remote mirror and telemetry
// batcher. Offline mode drops both; mutations then touch only the snapshot.
func openSession(configPath, statePath, apiBase string, offline bool) (*store.Store, *analytics.Batcher, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if statePath == "" {
		statePath = cfg.Client.StatePath
	}
	if apiBase == "" {
		apiBase = cfg.Client.APIBase
	}

	opts := store.Opts{Path: statePath}
	var batcher *analytics.Batcher
	if !offline && apiBase != "" {
		batcher, err = analytics.NewBatcher(analytics.BatcherOpts{
			Sink:          analytics.NewHTTPSink(apiBase),
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval(),
		})
		if err != nil {
			return nil, nil, err
		}
		opts.Remote = syncer.NewHTTPRemote(apiBase)
		opts.Batcher = batcher
	}

	st, err := store.Open(opts)
	if err != nil {
		if batcher != nil {
			batcher.Close()
		}
		return nil, nil, err
	}
	return st, batcher, nil
}

// closeSession flushes any queued telemetry before the process exits.
func closeSession(batcher *analytics.Batcher) {
	if batcher != nil {
		batcher.Close()
	}
}

func newSessionStatusCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active event session",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			out := cmd.OutOrStdout()
			evt := st.Event()
			if evt == nil {
				fmt.Fprintln(out, "No active event session. Run: setlist session create")
				return nil
			}
			fmt.Fprintf(out, "Event:    %s (%s)\n", evt.ID, evt.Type)
			fmt.Fprintf(out, "Couple:   %s\n", evt.CoupleNames)
			if evt.EventDate != "" {
				fmt.Fprintf(out, "Date:     %s\n", evt.EventDate)
			}
			if evt.Venue != "" {
				fmt.Fprintf(out, "Venue:    %s\n", evt.Venue)
			}
			fmt.Fprintf(out, "Stage:    %d (%s)\n", evt.CurrentStage, stage.Name(evt.CurrentStage))
			fmt.Fprintf(out, "Progress: %d answers, %d swipes, %d requests\n",
				len(st.Answers()), len(st.Swipes()), len(st.Requests()))
			fmt.Fprintf(out, "Share:    %s\n", evt.ShareToken)
			return nil
		},
	}
}

func newSessionCreateCmd(open openFunc) *cobra.Command {
	var (
		eventType string
		names     string
		date      string
		venue     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new event session",
		Long:  "Starts a new event session, replacing any existing one. Prior answers, swipes and requests are discarded locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			evt, err := st.CreateEvent(store.CreateEventOpts{
				Type:        eventType,
				CoupleNames: names,
				EventDate:   date,
				Venue:       venue,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created event %s\n", evt.ID)
			fmt.Fprintf(out, "Share token: %s\n", evt.ShareToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "wedding", "event type")
	cmd.Flags().StringVar(&names, "names", "", "couple names")
	cmd.Flags().StringVar(&date, "date", "", "event date")
	cmd.Flags().StringVar(&venue, "venue", "", "venue")
	return cmd
}

func newSessionAnswerCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <question-id> <value>",
		Short: "Answer a questionnaire question",
		Long: `Records the answer to a question, overwriting any prior answer. The
value is parsed as JSON when possible ('["rock","pop"]', '7'), otherwise
stored as a plain string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			var value interface{}
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1]
			}
			ans, err := st.SaveAnswer(args[0], value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved answer %s for %s\n", ans.ID, ans.QuestionID)
			return nil
		},
	}
}

func newSessionSwipeCmd(open openFunc) *cobra.Command {
	var reasons []string

	cmd := &cobra.Command{
		Use:   "swipe <song-id> <like|dislike|super_like|unsure>",
		Short: "Record a swipe on a song",
		Long:  "Records the couple's verdict on a song. Re-swiping the same song replaces the earlier verdict and its reason tags.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			swipe, err := st.SaveSwipe(args[0], args[1], reasons)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s\n", swipe.Action, swipe.SongID)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&reasons, "reason", nil, "reason tag for dislikes (repeatable)")
	return cmd
}

func newSessionRequestCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage couple requests",
	}

	var momentType string
	add := &cobra.Command{
		Use:   "add <free_text|do|dont|link|special_moment> <content>",
		Short: "Add a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			req, err := st.AddRequest(args[0], args[1], momentType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s request %s\n", req.Kind, req.ID)
			return nil
		},
	}
	add.Flags().StringVar(&momentType, "moment", "", "moment type for special_moment requests (e.g. first_dance)")

	rm := &cobra.Command{
		Use:   "rm <request-id>",
		Short: "Remove a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			if err := st.RemoveRequest(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed request %s\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			out := cmd.OutOrStdout()
			requests := st.Requests()
			if len(requests) == 0 {
				fmt.Fprintln(out, "No requests.")
				return nil
			}
			for _, r := range requests {
				line := fmt.Sprintf("%s  %-14s %s", r.ID, r.Kind, r.Content)
				if r.MomentType != "" {
					line += fmt.Sprintf(" (%s)", r.MomentType)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.AddCommand(add)
	cmd.AddCommand(rm)
	cmd.AddCommand(list)
	return cmd
}

func newSessionStageCmd(open openFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "stage <0-4>",
		Short: "Move the session to a stage",
		Long: `Sets the current questionnaire stage. Leaving the questions stage back
to setup asks for confirmation: setup edits can invalidate recorded
answers. All other transitions apply immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("stage must be a number: %q", args[0])
			}

			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			evt := st.Event()
			if evt == nil {
				return store.ErrNoEvent
			}

			if stage.RequiresConfirm(evt.CurrentStage, n) && !yes {
				if !confirmRollback(cmd) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := st.SetStage(n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stage set to %d (%s)\n", n, stage.Name(n))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the rollback confirmation prompt")
	return cmd
}

// confirmRollback prompts before a questions-to-setup rollback. Without a
// terminal on stdin there is nobody to ask, so the rollback is refused;
// scripted callers pass --yes.
func confirmRollback(cmd *cobra.Command) bool {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(cmd.OutOrStdout(), "Refusing to roll back to setup without a terminal; pass --yes to confirm.")
		return false
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Going back to setup may invalidate your answers.")
	fmt.Fprint(out, "Type \"yes\" to continue: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

func newSessionUpsellCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "upsell <upsell-id>",
		Short: "Record an upsell click",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, batcher, err := open()
			if err != nil {
				return err
			}
			defer closeSession(batcher)

			click, err := st.RecordUpsellClick(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded click %s on %s\n", click.ID, click.UpsellID)
			return nil
		},
	}
}
