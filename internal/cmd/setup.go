package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/monorun/internal/display"
	"github.com/harrison/monorun/internal/doctor"
)

// ErrSetupIncomplete is returned when a toolchain requirement is still unmet
// after remediation.
var ErrSetupIncomplete = errors.New("setup encountered errors")

// NewSetupCommand creates the 'monorun setup' command
func NewSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Verify the development toolchain",
		Long: `Verify that the .NET SDK, Node.js and npm meet the minimum major versions
required by the monorepo.

Every check runs even when an earlier one fails. An outdated npm is updated
in place; missing or outdated .NET and Node.js installations print
installation guidance.`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	defer env.Close()

	out := env.out
	display.Banner(out, "arolariu.ro Development Setup Tool")

	pipeline := doctor.NewDefaultPipeline(out, env.runner, lookPath)
	if pipeline.Validate(cmd.Context()) {
		for _, f := range pipeline.Report() {
			if f.Deficient() {
				env.log.LogWarn(fmt.Sprintf("%s: %s", f.Name, f.Kind))
			}
		}
		color.New(color.FgRed, color.Bold).Fprintln(out, "\n❌ Setup encountered errors. Please resolve them before continuing.")
		return ErrSetupIncomplete
	}

	color.New(color.FgGreen, color.Bold).Fprintln(out, "\n✅ Setup completed successfully!")
	display.Hint(out, "\n📝 Next steps:")
	display.Hint(out, "  1. Restart your terminal or IDE if you installed new software")
	display.Hint(out, "  2. Run 'npm run dev' to start development")
	display.Hint(out, "  3. Check the README.md for more information")
	return nil
}
