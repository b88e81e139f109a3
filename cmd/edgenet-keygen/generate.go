package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgenet-x/client-go/crypto"
)

var generateCmd = &cobra.Command{
	Use:   "generate [filename]",
	Short: "Generate a fresh secp256k1 identity",
	Long: `Generate a new secp256k1 key pair and print its address, public key,
private key as hex-encoded SEC1 DER, and SEC1 PEM block. The private key
is not PKCS#8-wrapped in either form.

If filename is given the same information is also written there as JSON:
{"publicKey", "privateKey", "address", "pem"}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

type generateOutput struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	Address    string `json:"address"`
	PEM        string `json:"pem"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	kp, err := crypto.GenerateKeys()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	privateHex, err := kp.ExportDERHex()
	if err != nil {
		return fmt.Errorf("export private key: %w", err)
	}

	pemBlock, err := kp.ExportPEM()
	if err != nil {
		return fmt.Errorf("export PEM: %w", err)
	}

	out := generateOutput{
		PublicKey:  hex.EncodeToString(kp.Public.SerializeCompressed()),
		PrivateKey: privateHex,
		Address:    string(kp.Address()),
		PEM:        string(pemBlock),
	}

	fmt.Printf("Address:     %s\n", out.Address)
	fmt.Printf("Public Key:  %s\n", out.PublicKey)
	fmt.Printf("Private Key: %s\n", out.PrivateKey)
	fmt.Printf("\n%s\n", out.PEM)

	if len(args) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Printf("\nKey saved to: %s\n", args[0])
	return nil
}
