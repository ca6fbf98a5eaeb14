package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaykit/relay-go/webhook"
)

var (
	verifyPayloadPath string
	verifyHeader      string
	verifySecret      string
	verifySecondary   string
	verifyTolerance   time.Duration
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signed webhook delivery",
	Long: `Verify checks a webhook signature header against a raw payload file.

During secret rotation, pass the new secret with --secret and the old one
with --secondary; either match verifies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(verifyPayloadPath)
		if err != nil {
			return fmt.Errorf("failed to read payload %s: %w", verifyPayloadPath, err)
		}

		v := webhook.Verifier{Tolerance: verifyTolerance}
		result := v.VerifyWithSecrets(payload, verifyHeader, verifySecret, verifySecondary)

		fmt.Printf("%s\n", result.Reason)
		if !result.Valid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPayloadPath, "payload", "", "path to the raw delivery body")
	verifyCmd.Flags().StringVar(&verifyHeader, "header", "", "signature header value (t=...,v1=...)")
	verifyCmd.Flags().StringVar(&verifySecret, "secret", "", "primary signing secret")
	verifyCmd.Flags().StringVar(&verifySecondary, "secondary", "", "secondary signing secret used during rotation")
	verifyCmd.Flags().DurationVar(&verifyTolerance, "tolerance", webhook.DefaultTolerance, "timestamp acceptance window")

	verifyCmd.MarkFlagRequired("payload")
	verifyCmd.MarkFlagRequired("header")
	verifyCmd.MarkFlagRequired("secret")
}
