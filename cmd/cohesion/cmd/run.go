package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Souhar-dya/Cohesion/internal/execute"
	"github.com/Souhar-dya/Cohesion/internal/ui"
)

var (
	flagLanguage string
	flagStdin    string
	flagPiston   string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a source file through the execution proxy",
	Long: `Execute a local source file against the code-execution service and
print its output. Defaults to C++.

Examples:
  cohesion run main.cpp
  cohesion run --language python script.py
  cohesion run --stdin "1 2 3" solve.cpp`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&flagLanguage, "language", "cpp", "language identifier")
	runCmd.Flags().StringVar(&flagStdin, "stdin", "", "standard input for the program")
	runCmd.Flags().StringVar(&flagPiston, "piston", "", "code execution endpoint")
	rootCmd.AddCommand(runCmd)
}

func runFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	cfg := loadConfig()
	endpoint := flagPiston
	if endpoint == "" {
		endpoint = cfg.ExecuteEndpoint
	}

	exec := execute.New(endpoint, cfg.ExecuteTimeout)
	res, err := exec.Run(context.Background(), &execute.Request{
		Language: flagLanguage,
		Code:     string(code),
		Stdin:    flagStdin,
	})
	if err != nil {
		if res != nil && res.Details != "" {
			return fmt.Errorf("%w: %s", err, res.Details)
		}
		return err
	}

	if res.Stdout != "" {
		fmt.Print(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Println()
		}
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, ui.WarningStyle.Render(res.Stderr)+"\n")
	}
	if res.Code != 0 {
		return fmt.Errorf("program exited with code %d", res.Code)
	}
	return nil
}
