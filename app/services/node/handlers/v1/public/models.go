package public

import (
	"github.com/ardanlabs/chaintraits/foundation/blockchain/accounts"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
)

type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Accounts    []info `json:"accounts"`
}

func toInfo(accountID database.AccountID, name string, act accounts.Info) info {
	return info{
		Account: accountID,
		Name:    name,
		Balance: act.Balance,
		Nonce:   act.Nonce,
	}
}

type tx struct {
	FromAccount database.AccountID `json:"from"`
	FromName    string             `json:"from_name"`
	To          database.AccountID `json:"to"`
	ToName      string             `json:"to_name"`
	ChainID     uint16             `json:"chain_id"`
	Nonce       uint64             `json:"nonce"`
	Value       uint64             `json:"value"`
	Tip         uint64             `json:"tip"`
	Data        []byte             `json:"data"`
	TimeStamp   uint64             `json:"timestamp"`
	GasPrice    uint64             `json:"gas_price"`
	GasUnits    uint64             `json:"gas_units"`
	Sig         string             `json:"sig"`
}

type block struct {
	ID            string             `json:"id"`
	Number        uint64             `json:"number"`
	PrevBlockHash string             `json:"prev_block_hash"`
	TimeStamp     uint64             `json:"timestamp"`
	BeneficiaryID database.AccountID `json:"beneficiary"`
	TransRoot     string             `json:"trans_root"`
	Uncles        []string           `json:"uncles"`
	Transactions  int                `json:"transactions"`
}

func toBlock(b database.Block) block {
	uncles := b.Uncles()
	if uncles == nil {
		uncles = []string{}
	}

	return block{
		ID:            b.ID(),
		Number:        b.Header.Number,
		PrevBlockHash: b.Header.PrevBlockHash,
		TimeStamp:     b.Header.TimeStamp,
		BeneficiaryID: b.Header.BeneficiaryID,
		TransRoot:     b.Header.TransRoot,
		Uncles:        uncles,
		Transactions:  len(b.Trans),
	}
}

type imported struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Number uint64 `json:"number"`
}
