package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/peer"
)

// Sync updates the peer list and imports the blocks the peers have that
// this node is missing. A peer that can't be reached is dropped.
func (w *Worker) Sync(ctx context.Context) {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	chainID := w.state.RetrieveGenesis().ChainID

	for _, p := range w.peers.Copy(w.host) {

		// Retrieve the status of this peer.
		peerStatus, err := w.queryPeerStatus(ctx, p)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", p.Host, err)
			w.peers.Remove(p)
			continue
		}

		if peerStatus.ChainID != chainID {
			w.evHandler("worker: sync: %s: wrong chain id %d", p.Host, peerStatus.ChainID)
			w.peers.Remove(p)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// If this peer has blocks we don't have, we need to add them.
		latest, _ := w.state.RetrieveLatestBlock()
		if peerStatus.LatestBlockNumber > latest.Number() {
			w.evHandler("worker: sync: retrievePeerBlocks: %s: latestBlockNumber[%d]", p.Host, peerStatus.LatestBlockNumber)

			if err := w.retrievePeerBlocks(ctx, p, latest.Number()+1); err != nil {
				w.evHandler("worker: sync: retrievePeerBlocks: %s: ERROR %s", p.Host, err)
			}
		}

		// Let the peer know this node is available.
		if w.host != "" {
			if err := w.announce(ctx, p); err != nil {
				w.evHandler("worker: sync: announce: %s: ERROR %s", p.Host, err)
			}
		}
	}
}

// =============================================================================

// addNewPeers takes the list of known peers and makes sure they are included
// in the nodes list of known peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	for _, p := range knownPeers {

		// Don't add this running node to the known peer list.
		if p.Match(w.host) {
			continue
		}

		if w.peers.Add(p) {
			w.evHandler("worker: sync: addNewPeers: adding peer-node %s", p.Host)
		}
	}
}

// queryPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list.
func (w *Worker) queryPeerStatus(ctx context.Context, p peer.Peer) (peer.PeerStatus, error) {
	url := fmt.Sprintf("http://%s/v1/node/status", p.Host)

	var ps peer.PeerStatus
	if err := w.send(ctx, http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	return ps, nil
}

// retrievePeerBlocks queries the specified node asking for blocks this node
// does not have and imports them in order.
func (w *Worker) retrievePeerBlocks(ctx context.Context, p peer.Peer, from uint64) error {
	url := fmt.Sprintf("http://%s/v1/node/blocks/list/%d/latest", p.Host, from)

	var blocks []json.RawMessage
	if err := w.send(ctx, http.MethodGet, url, nil, &blocks); err != nil {
		return err
	}

	data := make([][]byte, len(blocks))
	for i, raw := range blocks {
		data[i] = raw
	}

	var rejected int
	for i, err := range w.state.ImportBlocks(ctx, data) {
		if err != nil {
			rejected++
			w.evHandler("worker: sync: retrievePeerBlocks: %s: blk[%d]: REJECTED: %s", p.Host, from+uint64(i), err)
		}
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d blocks rejected", rejected, len(data))
	}

	return nil
}

// announce adds this node to the peer list of the specified node.
func (w *Worker) announce(ctx context.Context, p peer.Peer) error {
	url := fmt.Sprintf("http://%s/v1/node/peers", p.Host)
	return w.send(ctx, http.MethodPost, url, peer.New(w.host), nil)
}

// send is a helper function to send an HTTP request to a node.
func (w *Worker) send(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	var body bytes.Buffer
	if dataSend != nil {
		if err := json.NewEncoder(&body).Encode(dataSend); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	r := io.LimitReader(resp.Body, w.maxResp)

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode != http.StatusOK:
		var er struct {
			Error string `json:"error"`
		}
		json.NewDecoder(r).Decode(&er)
		return fmt.Errorf("%s: %s", resp.Status, er.Error)
	}

	if dataRecv != nil {
		if err := json.NewDecoder(r).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
