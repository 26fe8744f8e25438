package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Souhar-dya/Cohesion/internal/call"
	"github.com/Souhar-dya/Cohesion/internal/client"
	"github.com/Souhar-dya/Cohesion/internal/config"
	"github.com/Souhar-dya/Cohesion/internal/execute"
	"github.com/Souhar-dya/Cohesion/internal/protocol"
	"github.com/Souhar-dya/Cohesion/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join [room]",
	Aliases: []string{"j"},
	Short:   "Join a collaboration room",
	Long: `Join a room on the relay and stay connected until interrupted.

Typed lines are sent as chat. Slash commands:
  /peers         list current room members
  /code          print the shared code buffer
  /call          start a call with everyone in the room
  /hangup        end the call
  /run [stdin]   execute the shared buffer as C++
  /quit          leave the room

Examples:
  cohesion join
  cohesion join standup
  cohesion join --server wss://cohesion.example.com/ws pairing`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := ""
		if len(args) == 1 {
			room = args[0]
		}
		return joinRoom(room)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(room string) error {
	cfg := loadConfig()
	if room == "" {
		room = cfg.Room
	}

	mgr := client.New(cfg.RoomURL(room))
	calls := call.New(cfg, mgr)
	defer calls.Stop()
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mgr.Start()
	go renderLoop(mgr, calls)

	ui.PrintInfof("joining room %q via %s", room, cfg.ServerURL)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(cfg, mgr, calls, line); quit {
				return nil
			}
		}
	}
}

// renderLoop turns inbound frames and state changes into terminal
// output and feeds signaling frames to the call layer.
func renderLoop(mgr *client.Manager, calls *call.Manager) {
	for {
		select {
		case <-mgr.Done():
			return

		case state := <-mgr.States():
			switch state {
			case client.StateConnected:
				fmt.Println(ui.ConnectedStyle.Render("● connected"))
			case client.StateReconnecting:
				fmt.Println(ui.DisconnectedStyle.Render("○ disconnected, retrying"))
			}

		case f := <-mgr.Frames():
			renderFrame(mgr, calls, f)
		}
	}
}

func renderFrame(mgr *client.Manager, calls *call.Manager, f *protocol.Frame) {
	switch f.Type {
	case protocol.TypeInit:
		peers := "none"
		if len(f.Peers) > 0 {
			short := make([]string, len(f.Peers))
			for i, p := range f.Peers {
				short[i] = ui.ShortID(p)
			}
			peers = strings.Join(short, ", ")
		}
		ui.PrintInfof("you are %s | peers: %s", ui.ShortID(f.ID), peers)

	case protocol.TypeChat:
		style := ui.PeerStyle
		if f.ID == mgr.ID() {
			style = ui.SelfStyle
		}
		stamp := time.UnixMilli(f.TS).Format("15:04")
		fmt.Printf("%s %s %s\n", ui.MutedStyle.Render(stamp), style.Render(ui.ShortID(f.ID)+":"), f.Text)

	case protocol.TypePeerJoin:
		ui.PrintInfof("%s joined", ui.ShortID(f.ID))
		calls.HandlePeerJoin(f.ID)

	case protocol.TypePeerLeft:
		ui.PrintInfof("%s left", ui.ShortID(f.ID))
		calls.HandlePeerLeft(f.ID)

	case protocol.TypeCode:
		ui.PrintInfof("%s updated the code buffer (%d chars)", ui.ShortID(f.ID), len(f.Content))

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICE:
		if err := calls.HandleSignal(f); err != nil {
			ui.PrintErrorf("signaling: %v", err)
		}
	}
}

// handleLine interprets one typed line; the return value reports /quit.
func handleLine(cfg *config.Config, mgr *client.Manager, calls *call.Manager, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		if err := mgr.SendChat(line); err != nil {
			ui.PrintErrorf("send failed: %v", err)
		}
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	switch command {
	case "/quit", "/q":
		return true

	case "/peers":
		peers := mgr.Peers()
		if len(peers) == 0 {
			ui.PrintInfo("no one else is here")
			return false
		}
		for _, p := range peers {
			fmt.Printf("  %s %s\n", ui.PeerStyle.Render(ui.ShortID(p)), ui.MutedStyle.Render(p))
		}

	case "/code":
		code := mgr.Code()
		if code == "" {
			ui.PrintInfo("the code buffer is empty")
			return false
		}
		fmt.Println(ui.CodeBoxStyle.Render(code))

	case "/call":
		if err := calls.Start(mgr.Peers()); err != nil {
			ui.PrintErrorf("call failed: %v", err)
			return false
		}
		ui.PrintInfof("calling %d peer(s)", calls.PeerCount())

	case "/hangup":
		calls.Stop()
		ui.PrintInfo("call ended")

	case "/run":
		runBuffer(cfg, mgr.Code(), rest)

	default:
		ui.PrintErrorf("unknown command %s", command)
	}
	return false
}

// runBuffer submits the shared buffer to the execution proxy and prints
// both output streams.
func runBuffer(cfg *config.Config, code, stdin string) {
	if strings.TrimSpace(code) == "" {
		ui.PrintInfo("the code buffer is empty")
		return
	}

	exec := execute.New(cfg.ExecuteEndpoint, cfg.ExecuteTimeout)
	res, err := exec.Run(context.Background(), &execute.Request{
		Language: "cpp",
		Code:     code,
		Stdin:    stdin,
	})
	if err != nil {
		if res != nil && res.Details != "" {
			ui.PrintErrorf("%v: %s", err, res.Details)
		} else {
			ui.PrintErrorf("run failed: %v", err)
		}
		return
	}

	if res.Stdout != "" {
		fmt.Print(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Println()
		}
	}
	if res.Stderr != "" {
		fmt.Println(ui.WarningStyle.Render(res.Stderr))
	}
	ui.PrintInfof("exit code %d", res.Code)
}
