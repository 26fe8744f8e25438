package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Souhar-dya/Cohesion/internal/config"
	"github.com/Souhar-dya/Cohesion/internal/ui"
)

var (
	flagServer   string
	flagRoom     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cohesion",
	Short: "Room-scoped real-time collaboration from the terminal",
	Long: `Cohesion joins an ephemeral collaboration room: text chat, a shared
last-writer-wins code buffer, and peer-to-peer call signaling, all over a
single connection to the relay. Rooms live only while someone is in them.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "relay websocket URL")
	rootCmd.PersistentFlags().StringVar(&flagRoom, "room", "", `room name (default "main")`)
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURN, "turn", "", "TURN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	rootCmd.PersistentFlags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
}

func loadConfig() *config.Config {
	return config.Load(config.Options{
		ServerURL:  flagServer,
		Room:       flagRoom,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
}
