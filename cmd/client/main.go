package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/linzo/meet/internal/adapters/rtc"
	"github.com/linzo/meet/internal/client"
	"github.com/linzo/meet/internal/domain"
)

var (
	serverURL   string
	room        string
	name        string
	dedupWindow time.Duration
	negoTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "meet-client",
	Short: "Reference client for the meet signaling server",
	Long: `meet-client joins a room on the signaling server, negotiates a
direct link to every other participant and prints incoming captions.
Lines read from stdin are treated as local speech-recognition output:
filtered against remote captions and broadcast to the room.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "ws://localhost:8080/api/ws/signal", "signaling server URL")
	rootCmd.Flags().StringVarP(&room, "room", "r", "", "room to join (required)")
	rootCmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	rootCmd.Flags().DurationVar(&dedupWindow, "dedup-window", 5*time.Second, "caption dedup horizon")
	rootCmd.Flags().DurationVar(&negoTimeout, "negotiation-timeout", 30*time.Second, "abandon half-negotiated links after")
	_ = rootCmd.MarkFlagRequired("room")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(client.Options{
		ServerURL:          serverURL,
		Room:               domain.RoomID(room),
		Name:               name,
		DedupWindow:        dedupWindow,
		NegotiationTimeout: negoTimeout,
		Factory:            rtc.Factory(rtc.DefaultWebRTCConfig()),
		OnCaption: func(speaker, text string) {
			fmt.Printf("[%s] %s\n", speaker, text)
		},
	})

	if err := c.Connect(ctx); err != nil {
		return err
	}
	log.Info().Str("peer", string(c.Self())).Str("room", room).Msg("joined")

	go readStdin(ctx, c)

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func readStdin(ctx context.Context, c *client.Client) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if line := strings.TrimSpace(sc.Text()); line != "" {
			c.Say(line)
		}
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("client error")
		os.Exit(1)
	}
}
