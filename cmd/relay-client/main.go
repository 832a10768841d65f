// Command relay-client dials a relay server, completes the server
// handshake, and renders the decoded event stream through a small
// bubbletea dashboard.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tungo/infrastructure/logging"
	"tungo/infrastructure/relay/client"
	"tungo/infrastructure/relay/config"
	"tungo/infrastructure/relay/transport"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

func main() {
	generate := flag.Bool("generate", false, "generate a new client keypair and configuration file, then exit")
	serverURL := flag.String("server-url", "", "relay server websocket URL (used with -generate)")
	serverPubKeyHex := flag.String("server-pubkey", "", "relay server static public key, hex-encoded (used with -generate)")
	peerHex := flag.String("peer", "", "optional peer static public key, hex-encoded; if set, a peer handshake is started on startup")
	flag.Parse()

	resolver := config.NewArgumentResolver(config.NewDefaultResolver(), os.Args[1:])

	if *generate {
		if err := runGenerate(resolver, *serverURL, *serverPubKeyHex); err != nil {
			fmt.Fprintf(os.Stderr, "relay-client: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(resolver, *peerHex); err != nil {
		fmt.Fprintf(os.Stderr, "relay-client: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(resolver config.Resolver, serverURL, serverPubKeyHex string) error {
	if serverURL == "" || serverPubKeyHex == "" {
		return fmt.Errorf("-generate requires -server-url and -server-pubkey")
	}
	serverPubKey, err := hex.DecodeString(serverPubKeyHex)
	if err != nil {
		return fmt.Errorf("decode -server-pubkey: %w", err)
	}

	cfg, err := config.Generate(serverURL, serverPubKey)
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	if err := config.NewDefaultCreator(resolver).Create(cfg); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}
	path, _ := resolver.Resolve()
	fmt.Printf("wrote new configuration to %s\n", path)
	return nil
}

func run(resolver config.Resolver, peerHex string) error {
	cfg, err := config.NewReader(resolver).Read()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.NewLogrusLogger("relay-client")
	logrus.SetLevel(logrus.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	conn, err := transport.Dial(ctx, cfg.ServerURL, transport.DialOptions{})
	if err != nil {
		return fmt.Errorf("dial relay server: %w", err)
	}

	c, el := client.New(ctx, cfg.Keypair(), cfg.ServerPublicKey, logger)
	events := el.Run(ctx, conn)

	if err := c.Connect(); err != nil {
		return fmt.Errorf("start server handshake: %w", err)
	}

	if peerHex != "" {
		peerKey, err := hex.DecodeString(peerHex)
		if err != nil {
			return fmt.Errorf("decode -peer: %w", err)
		}
		if err := c.ConnectPeer(peerKey); err != nil {
			return fmt.Errorf("start peer handshake: %w", err)
		}
	}

	program := tea.NewProgram(newDashboard(events, cancel))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
