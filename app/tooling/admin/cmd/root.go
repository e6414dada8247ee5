// Package cmd contains the admin commands.
package cmd

import (
	"fmt"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/state"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/chaintraits/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	genesisPath string
	dbPath      string
	accountPath string
	verbose     bool
)

// log is set by Execute before any command runs.
var log *zap.SugaredLogger

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Administrative tasks for the chain node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "zblock/blocks.db", "Path to the block storage folder.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log the blockchain events.")
}

// Execute runs the command selected on the command line.
func Execute(build string, l *zap.SugaredLogger) error {
	log = l
	rootCmd.Version = build
	return rootCmd.Execute()
}

// openState starts the state against the block storage on disk. The stored
// chain is replayed so the accounts reflect the latest block.
func openState() (*state.State, error) {
	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	serializer, err := disk.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening block storage: %w", err)
	}

	var ev func(v string, args ...any)
	if verbose {
		ev = logger.NewEvHandler(log, "00000000-0000-0000-0000-000000000000", nil)
	}

	return state.New(state.Config{
		Genesis:    gen,
		Serializer: serializer,
		EvHandler:  ev,
	})
}
