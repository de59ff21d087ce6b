// Package simulate runs a survey call on the terminal. The OpenAI agent plays the caller's counterpart and the user
// answers on stdin.
package simulate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/surveycall/cmd/cli/clienv"
	"github.com/myrjola/surveycall/cmd/cli/surveys"
	"github.com/myrjola/surveycall/internal/ai"
	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/logging"
	"github.com/myrjola/surveycall/internal/models"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/myrjola/surveycall/internal/telephony"
	"github.com/myrjola/surveycall/internal/tools"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "simulate",
	Title: "Simulation",
}

func init() {
	Command.Flags().String("name", "", "name of the simulated recipient")
	Command.Flags().String("phone", "+10000000000", "phone number of the simulated recipient")
	Command.Flags().String("email", "", "email of the simulated recipient")
	Command.Flags().String("survey-url", "", "link offered by send_survey_link")
	Command.Flags().String("organization", "", "organization the agent calls for")
	Command.Flags().String("log-dir", "", "directory for the per-call log file")
	Command.Flags().Duration("auto-end-grace", call.DefaultConfig().AutoEndGrace, "wait after the last answer")
	Command.Flags().Duration("max-duration", call.DefaultConfig().MaxDuration, "end the call after this long")
}

var Command = &cobra.Command{
	Use:     "simulate [file.json]",
	GroupID: "simulate",
	Short:   "Simulate a survey call",
	Long:    `Runs a survey call on the terminal with the OpenAI agent. Requires OPENAI_API_KEY.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
		if !ok || apiKey == "" {
			return errors.New("OPENAI_API_KEY not set")
		}
		client := ai.NewClient(apiKey, os.Getenv("OPENAI_MODEL"))
		return Run(cmd, args[0], client, client.Model(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// Run simulates one call of the survey in path. The recipient's lines are read from in.
func Run(cmd *cobra.Command, path string, completer ai.ChatCompleter, model string, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	logger := clienv.Logger(cmd)
	flags := cmd.Flags()
	flag := func(name string) string {
		value, _ := flags.GetString(name)
		return value
	}

	s, err := surveys.Load(path)
	if err != nil {
		return err
	}
	db, err := clienv.OpenDatabase(cmd, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	caller := call.Caller{Number: flag("phone"), Name: flag("name"), Email: flag("email")}
	prompt, err := ai.BuildSystemPrompt(s, caller, ai.PromptOptions{
		AgentName:        "",
		Organization:     flag("organization"),
		RestrictedTopics: nil,
		Template:         nil,
	})
	if err != nil {
		return err
	}

	callID := uuid.NewString()
	callLog, err := logging.OpenCallLog(flag("log-dir"), callID, caller.Number, logger)
	if err != nil {
		return err
	}
	cfg := call.DefaultConfig()
	cfg.FarewellBuffer = 0
	cfg.AutoEndGrace, _ = flags.GetDuration("auto-end-grace")
	cfg.MaxDuration, _ = flags.GetDuration("max-duration")

	console := telephony.NewConsole(out)
	sink := terminal{w: out}
	session := call.NewSession(callID, caller, s, flag("survey-url"), time.Now(), nil)
	c := call.New(session, call.Deps{
		Store:    repositories.NewCallRepository(db, callLog.Logger),
		Notifier: sink,
		Phone:    console,
		Logger:   callLog.Logger,
		Log:      callLog,
		Now:      nil,
	}, cfg)

	toolbox := tools.New(c, sink, sink)
	agent := ai.NewAgent(completer, model, prompt, tools.Definitions(), toolbox, callLog.Logger)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	utterance := ""
	for {
		reply, replyErr := agent.Reply(ctx, utterance)
		if replyErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "agent failed", errors.SlogError(replyErr))
			_, _ = c.End(ctx, call.NotAvailable)
			return replyErr
		}
		if strings.TrimSpace(reply) != "" {
			if _, sayErr := console.Speak(ctx, reply); sayErr != nil {
				return errors.Wrap(sayErr, "print reply")
			}
		}

		select {
		case <-c.Done():
			return summary(out, c)
		default:
		}
		_, _ = fmt.Fprint(out, "you> ")
		select {
		case <-c.Done():
			return summary(out, c)
		case line, more := <-lines:
			if !more {
				_, _ = c.End(ctx, call.NotAvailable)
				return summary(out, c)
			}
			utterance = line
		}
	}
}

func summary(w io.Writer, c *call.Call) error {
	result, _ := c.Result()
	_, err := fmt.Fprintf(w, "\ncall %s ended: %s, %d answers recorded\n",
		c.ID(), result.Reason, len(result.Record.Transcript))
	return err
}

// terminal prints the side effects that the real deployment sends to other services.
type terminal struct {
	w io.Writer
}

func (t terminal) AnswerRecorded(_ context.Context, _ string, entry models.TranscriptEntry) {
	_, _ = fmt.Fprintf(t.w, "[recorded %s: %s]\n", entry.QuestionID, entry.Answer)
}

func (t terminal) CallEnded(_ context.Context, record models.CallRecord) {
	_, _ = fmt.Fprintf(t.w, "[call ended: %s after %.0fs]\n", record.EndReason, record.DurationSeconds)
}

func (t terminal) ScheduleCall(_ context.Context, surveyID, phone string, delay time.Duration) error {
	_, _ = fmt.Fprintf(t.w, "[callback for %s to %s in %s]\n", surveyID, phone, delay)
	return nil
}

func (t terminal) SendSurveyLink(_ context.Context, req models.LinkRequest) error {
	if req.Email == "" || req.SurveyURL == "" {
		return errors.New("no email or survey url")
	}
	_, _ = fmt.Fprintf(t.w, "[survey link %s emailed to %s]\n", req.SurveyURL, req.Email)
	return nil
}
