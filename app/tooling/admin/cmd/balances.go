package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/nameservice"
	"github.com/spf13/cobra"
)

var url string

type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

type balances struct {
	LatestBlock string `json:"latest_block"`
	Accounts    []info `json:"accounts"`
}

var balancesCmd = &cobra.Command{
	Use:   "balances [account]",
	Short: "Print the balances from the block storage or a running node",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balancesRun,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().StringVarP(&url, "url", "u", "", "Url of a running node, the block storage is read when empty.")
}

func balancesRun(cmd *cobra.Command, args []string) error {
	var onlyAct string
	if len(args) == 1 {
		onlyAct = args[0]
	}

	var bals balances
	var err error
	switch url {
	case "":
		bals, err = fromStorage(onlyAct)
	default:
		bals, err = fromNode(onlyAct)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "LatestBlock: %s\n\n", bals.LatestBlock)
	for _, inf := range bals.Accounts {
		fmt.Fprintf(cmd.OutOrStdout(), "Account: %s  Name: %s  Balance: %d  Nonce: %d\n", inf.Account, inf.Name, inf.Balance, inf.Nonce)
	}

	return nil
}

func fromStorage(onlyAct string) (balances, error) {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return balances{}, err
	}

	st, err := openState()
	if err != nil {
		return balances{}, err
	}
	defer st.Shutdown()

	var bals balances
	if latest, exists := st.RetrieveLatestBlock(); exists {
		bals.LatestBlock = latest.ID()
	}

	for accountID, act := range st.RetrieveAccounts() {
		if onlyAct != "" && string(accountID) != onlyAct {
			continue
		}
		bals.Accounts = append(bals.Accounts, info{
			Account: accountID,
			Name:    ns.Lookup(accountID),
			Balance: act.Balance,
			Nonce:   act.Nonce,
		})
	}

	sort.Slice(bals.Accounts, func(i, j int) bool { return bals.Accounts[i].Account < bals.Accounts[j].Account })

	return bals, nil
}

func fromNode(onlyAct string) (balances, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/list", url)
	if onlyAct != "" {
		endpoint += "/" + onlyAct
	}

	resp, err := http.Get(endpoint)
	if err != nil {
		return balances{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return balances{}, fmt.Errorf("node responded with %s", resp.Status)
	}

	var bals balances
	if err := json.NewDecoder(resp.Body).Decode(&bals); err != nil {
		return balances{}, err
	}

	return bals, nil
}
