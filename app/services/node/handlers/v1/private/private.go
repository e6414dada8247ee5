// Package private maintains the group of handlers for operator access.
package private

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ardanlabs/chaintraits/business/web/errs"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/peer"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/state"
	"github.com/ardanlabs/chaintraits/foundation/web"
	"go.uber.org/zap"
)

// maxBatchSize is the largest batch of encoded blocks accepted at once.
const maxBatchSize = 64 << 20

// Handlers manages the set of private endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Peers *peer.PeerSet
	Host  string
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest, _ := h.State.RetrieveLatestBlock()

	status := peer.PeerStatus{
		LatestBlockID:     latest.ID(),
		LatestBlockNumber: latest.Number(),
		ChainID:           h.State.RetrieveGenesis().ChainID,
		KnownPeers:        h.Peers.Copy(h.Host),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// AddPeer adds a new node to this node's list of known peers.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var p peer.Peer
	if err := web.Decode(r, &p); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if !p.Match(h.Host) && h.Peers.Add(p) {
		h.Log.Infow("add peer", "traceid", web.GetTraceID(ctx), "host", p.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// BlocksByNumber returns the encoded canonical blocks in the specified range
// read back from storage.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(fmt.Errorf("from %d is greater than to %d", from, to), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// ImportBlocks takes a batch of encoded blocks, one per line, and runs them
// through the import pipeline. The outcome is reported for every line.
func (h Handlers) ImportBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := web.ReadAll(r, maxBatchSize)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	var data [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(nil, maxBatchSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		data = append(data, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	type outcome struct {
		Line   int    `json:"line"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	results := make([]outcome, len(data))
	for i, err := range h.State.ImportBlocks(ctx, data) {
		results[i] = outcome{Line: i + 1, Status: "accepted"}
		if err != nil {
			results[i].Status = "rejected"
			results[i].Error = err.Error()
		}
	}

	h.Log.Infow("import blocks", "traceid", web.GetTraceID(ctx), "blocks", len(data))

	return web.Respond(ctx, w, results, http.StatusOK)
}

// Truncate resets the node back to the genesis block.
func (h Handlers) Truncate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.Truncate(); err != nil {
		return err
	}

	h.Log.Infow("truncate", "traceid", web.GetTraceID(ctx))

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
