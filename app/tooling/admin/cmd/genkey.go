package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

const keyExtension = ".ecdsa"

var genkeyCmd = &cobra.Command{
	Use:   "genkey <name>",
	Short: "Generate a new private key for the named account",
	Args:  cobra.ExactArgs(1),
	RunE:  genkeyRun,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}

func genkeyRun(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	if err := os.MkdirAll(accountPath, 0755); err != nil {
		return err
	}

	path := filepath.Join(accountPath, name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, database.PublicKeyToAccountID(privateKey.PublicKey))

	return nil
}
