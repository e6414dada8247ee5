// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ardanlabs/chaintraits/business/web/errs"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/state"
	"github.com/ardanlabs/chaintraits/foundation/events"
	"github.com/ardanlabs/chaintraits/foundation/nameservice"
	"github.com/ardanlabs/chaintraits/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxBlockSize is the largest encoded block accepted by the import endpoint.
const maxBlockSize = 4 << 20

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v := web.GetValues(ctx)

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}

			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Accounts returns the current balances for all accounts or the one specified.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountStr := web.Param(r, "account")

	var infos []info
	switch accountStr {
	case "":
		for accountID, act := range h.State.RetrieveAccounts() {
			infos = append(infos, toInfo(accountID, h.NS.Lookup(accountID), act))
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Account < infos[j].Account })

	default:
		accountID, err := database.ToAccountID(accountStr)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		act, exists := h.State.QueryAccount(accountID)
		if !exists {
			return errs.NewTrusted(fmt.Errorf("account %s not found", accountID), http.StatusNotFound)
		}
		infos = append(infos, toInfo(accountID, h.NS.Lookup(accountID), act))
	}

	resp := actInfo{
		Accounts: infos,
	}
	if latest, exists := h.State.RetrieveLatestBlock(); exists {
		resp.LatestBlock = latest.ID()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByID returns the block with the specified id, canonical or side.
func (h Handlers) BlockByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	blk, exists := h.State.QueryBlockByID(id)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", id), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// BlockByNumber returns the canonical block at the specified number. The
// value latest returns the head of the chain.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	numStr := web.Param(r, "num")

	num := state.QueryLatest
	if numStr != "latest" {
		var err error
		num, err = strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			return errs.NewTrusted(fmt.Errorf("invalid block number %q", numStr), http.StatusBadRequest)
		}
	}

	blk, exists := h.State.QueryBlockByNumber(num)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", numStr), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toBlock(blk), http.StatusOK)
}

// Transactions returns the transactions of the specified block.
func (h Handlers) Transactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	trans, exists := h.State.QueryTransactions(id)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", id), http.StatusNotFound)
	}

	txs := make([]tx, 0, len(trans))
	for _, tran := range trans {
		txs = append(txs, tx{
			FromAccount: tran.FromID,
			FromName:    h.NS.Lookup(tran.FromID),
			To:          tran.ToID,
			ToName:      h.NS.Lookup(tran.ToID),
			ChainID:     tran.ChainID,
			Nonce:       tran.Nonce,
			Value:       tran.Value,
			Tip:         tran.Tip,
			Data:        tran.Data,
			TimeStamp:   tran.TimeStamp,
			GasPrice:    tran.GasPrice,
			GasUnits:    tran.GasUnits,
			Sig:         tran.SignatureString(),
		})
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// Uncles returns the uncles declared by the specified block.
func (h Handlers) Uncles(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	uncles, exists := h.State.QueryUncles(id)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", id), http.StatusNotFound)
	}

	if uncles == nil {
		uncles = []string{}
	}

	return web.Respond(ctx, w, uncles, http.StatusOK)
}

// ImportBlock takes an encoded block and runs it through the import
// pipeline. The phase that refused the block is reported on failure.
func (h Handlers) ImportBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data, err := web.ReadAll(r, maxBlockSize)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, err := h.State.ImportBlock(ctx, data)
	if err != nil {
		return ImportError(err)
	}

	h.Log.Infow("import block", "traceid", web.GetTraceID(ctx), "number", blk.Number(), "id", blk.ID())

	resp := imported{
		Status: "block accepted",
		ID:     blk.ID(),
		Number: blk.Number(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ImportError maps an import pipeline failure to the response sent back
// to the client.
func ImportError(err error) error {
	pe := chain.GetPhaseError(err)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	case pe == nil:
		return err
	case pe.Phase == chain.PhaseEnact:
		return errs.NewTrusted(err, http.StatusConflict)
	default:
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
}
