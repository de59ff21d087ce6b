package surveys

import (
	"fmt"
	"os"

	"github.com/myrjola/surveycall/cmd/cli/clienv"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/myrjola/surveycall/internal/survey"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "survey",
	Title: "Survey definitions",
}

func init() {
	Command.AddCommand(Import)
}

var Command = &cobra.Command{
	Use:     "survey",
	GroupID: "survey",
	Short:   "Manage survey definitions",
}

var Import = &cobra.Command{
	Use:   "import [file.json]",
	Short: "Import survey definition",
	Long:  `Imports a JSON survey definition, replacing the questions of an existing survey with the same id`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := clienv.Logger(cmd)
		s, err := Load(args[0])
		if err != nil {
			return err
		}
		db, err := clienv.OpenDatabase(cmd, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if err = repositories.NewSurveyRepository(db, logger).Save(cmd.Context(), s); err != nil {
			return errors.Wrap(err, "save survey")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported survey %q (%s) with %d questions\n", s.Name, s.ID, s.Len())
		return nil
	},
}

// Load reads and validates a survey definition file.
func Load(path string) (*survey.Survey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open survey definition")
	}
	defer f.Close()
	definition, err := survey.DecodeDefinition(f)
	if err != nil {
		return nil, err
	}
	s, err := definition.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build survey")
	}
	return s, nil
}
