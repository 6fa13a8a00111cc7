package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/agentgate/internal/auth"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "keygen",
		Usage:     "hash an API key (or a fresh random one) for the auth.api_keys section of config.yaml",
		ArgsUsage: "[api-key]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "user id the key authenticates as",
				Value: auth.DefaultUserID,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			apiKey := cmd.Args().First()
			if apiKey == "" {
				var err error
				if apiKey, err = newKey(); err != nil {
					return err
				}
			}
			return printKey(cmd.Writer, apiKey, cmd.String("user"))
		},
	}
}

func newKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "ag-" + hex.EncodeToString(buf), nil
}

func printKey(w io.Writer, apiKey, userID string) error {
	keyHash := auth.HashAPIKey(apiKey)

	_, err := fmt.Fprintf(w, `API Key: %s
SHA-256 Hash: %s

Add this to your config.yaml:
auth:
  api_keys:
    - key_hash: "%s"
      user_id: "%s"
      description: "Generated key"
`, apiKey, keyHash, keyHash, userID)
	return err
}
