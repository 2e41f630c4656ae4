package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/qrchat/internal/store"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionCloseCmd())
	cmd.AddCommand(newSessionOpenCmd())
	cmd.AddCommand(newSessionDeleteCmd())
	return cmd
}

// storeFromConfig builds a Store over the configured database. CLI commands
// run without notifiers; the serve process owns those.
func storeFromConfig(configPath string) (*store.Store, error) {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	return store.New(store.Opts{DB: gormDB})
}

func newSessionCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		posterURL  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		Long:  "Creates a session and prints the share link visitors scan into.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			st, err := store.New(store.Opts{DB: gormDB})
			if err != nil {
				return err
			}

			sess, err := st.CreateSession(cmd.Context(), store.CreateSessionParams{
				Name:      name,
				PosterURL: posterURL,
				CreatedBy: "cli",
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created session %s\n", sess.ID)
			fmt.Fprintf(out, "Share link: %s\n", cfg.ShareURL(sess.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	cmd.Flags().StringVar(&name, "name", "", "session display name")
	cmd.Flags().StringVar(&posterURL, "poster", "", "poster image URL")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Long:  "Lists all sessions, newest first. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}

			sessions, err := st.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCREATED")
			for _, s := range sessions {
				name := s.Name
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
					s.ID, truncate(name, 40), s.IsActive, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show session details",
		Long:  "Displays session metadata plus visitor and message counts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func runSessionShow(cmd *cobra.Command, configPath, id string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	st, err := store.New(store.Opts{DB: gormDB})
	if err != nil {
		return err
	}

	sess, err := st.GetSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	visitors, err := st.ListVisitors(cmd.Context(), id)
	if err != nil {
		return err
	}
	messages, err := st.ListMessages(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %s\n", sess.ID)
	if sess.Name != "" {
		fmt.Fprintf(out, "Name:       %s\n", sess.Name)
	}
	if sess.PosterURL != "" {
		fmt.Fprintf(out, "Poster:     %s\n", sess.PosterURL)
	}
	fmt.Fprintf(out, "Active:     %t\n", sess.IsActive)
	fmt.Fprintf(out, "Created:    %s by %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"), sess.CreatedBy)
	fmt.Fprintf(out, "Share link: %s\n", cfg.ShareURL(sess.ID))
	fmt.Fprintf(out, "Visitors:   %d\n", len(visitors))
	fmt.Fprintf(out, "Messages:   %d\n", len(messages))
	return nil
}

func newSessionCloseCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Deactivate a session",
		Long:  "Stops new registrations and messages. Stored records stay readable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := st.SetActive(cmd.Context(), args[0], false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s closed\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func newSessionOpenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "open <id>",
		Short: "Reactivate a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := st.SetActive(cmd.Context(), args[0], true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s opened\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func newSessionDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Long: `Deletes a session. Its visitors and messages become orphans and are
purged by the next sweeper run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirmDelete(cmd, args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			st, err := storeFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func confirmDelete(cmd *cobra.Command, id string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will delete session %q. Its registrations and messages\n", id)
	fmt.Fprintln(out, "become unreachable and are removed by the next sweep.")
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
