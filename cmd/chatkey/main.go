package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/crypto"
)

var rootCmd = &cobra.Command{
	Use:   "chatkey",
	Short: "Key and signature helper for ChatWave clients",
}

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate an Ed25519 keypair",
	RunE:  runGen,
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print signature headers for a request body (stdin or --body)",
	RunE:  runSign,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Print a signed websocket URL",
	RunE:  runConnect,
}

var (
	flagKey    string
	flagUser   string
	flagBody   string
	flagServer string
	flagRoom   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagKey, "key", os.Getenv("CHATWAVE_KEY"), "base64 Ed25519 private key (from env CHATWAVE_KEY if set)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", os.Getenv("CHATWAVE_USER"), "registered user id (from env CHATWAVE_USER if set)")
	signCmd.Flags().StringVar(&flagBody, "body", "", "file containing the request body")
	connectCmd.Flags().StringVar(&flagServer, "server", "ws://localhost:8080", "server base URL")
	connectCmd.Flags().StringVar(&flagRoom, "room", "", "room to join on connect")

	rootCmd.AddCommand(genCmd, signCmd, connectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("chatkey")
	}
}

func runGen(cmd *cobra.Command, args []string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Public key (base64):  %s\n", base64.StdEncoding.EncodeToString(pub))
	fmt.Fprintf(out, "Private key (base64): %s\n", base64.StdEncoding.EncodeToString(priv))
	return nil
}

func signer() (ed25519.PrivateKey, error) {
	if flagKey == "" || flagUser == "" {
		return nil, fmt.Errorf("--key and --user are required")
	}
	return crypto.ParsePrivateKey(flagKey)
}

func runSign(cmd *cobra.Command, args []string) error {
	priv, err := signer()
	if err != nil {
		return err
	}

	var body []byte
	if flagBody != "" {
		body, err = os.ReadFile(flagBody)
	} else {
		body, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	sum := sha256.Sum256(body)
	nonce, ts, sig := crypto.Sign(priv, hex.EncodeToString(sum[:]))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderUser, flagUser)
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderNonce, nonce)
	fmt.Fprintf(out, "%s: %d\n", middleware.HeaderTimestamp, ts)
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderSignature, sig)
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	priv, err := signer()
	if err != nil {
		return err
	}

	u, err := url.Parse(flagServer)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	u.Path = "/ws"

	q := crypto.ConnectQuery(priv, flagUser)
	if flagRoom != "" {
		q.Set("room", flagRoom)
	}
	u.RawQuery = q.Encode()

	fmt.Fprintln(cmd.OutOrStdout(), u.String())
	return nil
}
