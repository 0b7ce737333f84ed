package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"docchat/internal/api"
	"docchat/internal/helper"

	"github.com/spf13/cobra"
)

var (
	askFiles   []string
	askSession string
	askModel   string
	devMessage string
)

var askCMD = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask a question grounded in uploaded files",
	Long:  `Ask a question. With --file the answer is grounded in those files. With no question on the command line, questions are read line by line from stdin within one session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		out := cmd.OutOrStdout()
		sessionID := askSession

		ask := func(q string) error {
			id, err := c.ChatFile(cmd.Context(), api.ChatFileRequest{
				UserMessage: q,
				FileIDs:     askFiles,
				SessionID:   sessionID,
				Model:       askModel,
			}, printToken(out))
			fmt.Fprintln(out)
			if id != "" {
				sessionID = id
			}
			return err
		}

		if len(args) > 0 {
			if err := ask(strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
			return nil
		}

		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			q := strings.TrimSpace(sc.Text())
			if q == "" {
				continue
			}
			if err := ask(q); err != nil {
				return err
			}
		}
		if sessionID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
		}
		return sc.Err()
	},
}

var chatCMD = &cobra.Command{
	Use:   "chat MESSAGE",
	Short: "Plain completion without retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		err := apiClient().Chat(cmd.Context(), api.ChatRequest{
			DeveloperMessage: devMessage,
			UserMessage:      strings.Join(args, " "),
			Model:            askModel,
		}, printToken(out))
		fmt.Fprintln(out)
		return err
	},
}

var historyCMD = &cobra.Command{
	Use:   "history [SESSION_ID]",
	Short: "List chat sessions or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			sess, err := c.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				helper.PrettyPrint(out, sess)
				return nil
			}
			for _, m := range sess.Messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Role, m.Content)
			}
			return nil
		}

		sessions, err := c.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			helper.PrettyPrint(out, sessions)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION ID\tCREATED\tMESSAGES\tFILES")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.SessionID, s.CreatedAt.Local().Format(time.DateTime),
				len(s.Messages), strings.Join(s.FileIDs, ","))
		}
		return tw.Flush()
	},
}

func printToken(w io.Writer) func(string) error {
	return func(tok string) error {
		_, err := io.WriteString(w, tok)
		return err
	}
}

func init() {
	askCMD.Flags().StringSliceVarP(&askFiles, "file", "f", nil, "file ids to ground the answer in")
	askCMD.Flags().StringVarP(&askSession, "session", "s", "", "continue an existing session")
	askCMD.Flags().StringVar(&askModel, "model", "", "override the chat model")
	chatCMD.Flags().StringVar(&devMessage, "developer", "", "developer instruction")
	chatCMD.Flags().StringVar(&askModel, "model", "", "override the chat model")
	rootCMD.AddCommand(askCMD, chatCMD, historyCMD)
}
