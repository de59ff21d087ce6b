package calls

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/myrjola/surveycall/cmd/cli/clienv"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "calls",
	Title: "Call records",
}

func init() {
	Command.AddCommand(List)
	List.Flags().Bool("transcript", false, "print the transcript of every call")
}

var Command = &cobra.Command{
	Use:     "calls",
	GroupID: "calls",
	Short:   "Inspect finished calls",
}

var List = &cobra.Command{
	Use:   "list [phone]",
	Short: "List calls to a recipient",
	Long:  `Lists the finished calls to a phone number, most recent first`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := clienv.Logger(cmd)
		db, err := clienv.OpenDatabase(cmd, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := repositories.NewCallRepository(db, logger).ListByRecipient(cmd.Context(), args[0])
		if err != nil {
			return errors.Wrap(err, "list calls")
		}
		showTranscript, _ := cmd.Flags().GetBool("transcript")

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // two spaces between columns
		_, _ = fmt.Fprintln(w, "STARTED\tCALL\tSURVEY\tDURATION\tCOMPLETED\tREASON\tANSWERS")
		for _, r := range records {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%d\n",
				r.StartedAt.Local().Format(time.DateTime), r.CallID, r.SurveyID,
				(time.Duration(r.DurationSeconds) * time.Second).String(), r.Completed, r.EndReason, len(r.Transcript))
			if showTranscript {
				for _, entry := range r.Transcript {
					_, _ = fmt.Fprintf(w, "\t  [%s] %s\t%s\n", entry.QuestionID, entry.Question, entry.Answer)
				}
			}
		}
		return w.Flush()
	},
}
