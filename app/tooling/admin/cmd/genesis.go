package cmd

import (
	"fmt"
	"time"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/nameservice"
	"github.com/spf13/cobra"
)

var (
	chainID       uint16
	transPerBlock uint16
	maxUncles     uint16
	uncleDepth    uint64
	miningReward  uint64
	balance       uint64
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Write a genesis file funding every account in the account path",
	Args:  cobra.NoArgs,
	RunE:  genesisRun,
}

func init() {
	rootCmd.AddCommand(genesisCmd)
	genesisCmd.Flags().Uint16Var(&chainID, "chain-id", 1, "Unique id for this chain.")
	genesisCmd.Flags().Uint16Var(&transPerBlock, "trans-per-block", 10, "Maximum transactions per block, 0 for no limit.")
	genesisCmd.Flags().Uint16Var(&maxUncles, "max-uncles", 2, "Maximum uncles a block can declare.")
	genesisCmd.Flags().Uint64Var(&uncleDepth, "uncle-depth", 6, "How many generations back an uncle can be.")
	genesisCmd.Flags().Uint64Var(&miningReward, "mining-reward", 700, "Reward paid to the beneficiary of every block.")
	genesisCmd.Flags().Uint64Var(&balance, "balance", 1_000_000, "Starting balance of every account.")
}

func genesisRun(cmd *cobra.Command, args []string) error {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	gen := genesis.Genesis{
		Date:          time.Now().UTC().Truncate(time.Second),
		ChainID:       chainID,
		TransPerBlock: transPerBlock,
		MaxUncles:     maxUncles,
		UncleDepth:    uncleDepth,
		MiningReward:  miningReward,
		Balances:      make(map[string]uint64),
	}

	for accountID := range ns.Copy() {
		gen.Balances[string(accountID)] = balance
	}

	if err := genesis.Save(genesisPath, gen); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: accounts[%d]: id[%s]\n", genesisPath, len(gen.Balances), database.GenesisBlock(gen).ID())

	return nil
}
