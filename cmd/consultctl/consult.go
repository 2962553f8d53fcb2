package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	// chat: interactive consultation loop
	var resumeSession string
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive consultation session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			session := c.NewSession()
			if resumeSession != "" {
				session = c.ResumeSession(resumeSession)
				if err := session.Refresh(cmd.Context()); err != nil {
					return err
				}
			}

			fmt.Fprintln(os.Stdout, "Describe your symptoms. Type /end to finish, /quit to leave without saving.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Fprint(os.Stdout, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/end":
					res, err := session.End(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stdout, "\nSummary: %s\nSaved as %s\n", res.Summary, res.ConversationID)
					return nil
				}

				reply, err := session.Send(cmd.Context(), line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
					continue
				}
				name := session.DoctorName()
				if reply.SpecialistName != "" {
					name = reply.SpecialistName
				}
				if reply.HandoffMessage != "" {
					fmt.Fprintf(os.Stdout, "\n[%s] %s\n", name, reply.HandoffMessage)
				}
				fmt.Fprintf(os.Stdout, "\n[%s] %s\n", name, reply.Content)
				if asked, max := session.QuestionProgress(); max > 0 {
					fmt.Fprintf(os.Stdout, "(question %d of %d, stage %s)\n", asked, max, session.Stage())
				}
			}
		},
	}
	chatCmd.Flags().StringVarP(&resumeSession, "session", "s", "", "Resume an active session ID")
	rootCmd.AddCommand(chatCmd)

	// history
	var page, limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List completed consultations",
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := newClient().History(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(hist, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	historyCmd.Flags().IntVarP(&limit, "limit", "l", 10, "Page size")
	rootCmd.AddCommand(historyCmd)

	// end
	endCmd := &cobra.Command{
		Use:   "end SESSION_ID",
		Short: "End and archive an active consultation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().ResumeSession(args[0]).End(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Summary: %s\nSaved as %s\n", res.Summary, res.ConversationID)
			return nil
		},
	}
	rootCmd.AddCommand(endCmd)
}
