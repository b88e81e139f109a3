package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "edgenet-keygen",
	Short: "edgenet-keygen - identity key management for the client SDK",
	Long: `edgenet-keygen generates the secp256k1 identity a Client uses to
sign and encrypt envelopes on the bus.`,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
