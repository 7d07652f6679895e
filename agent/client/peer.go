package client

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"

	"github.com/palisadedb/palisade/agent"
)

// Peer talks to the agent on another backend, for the clone copier's
// snapshot handshake.
type Peer struct {
	backend agent.Backend
	client  *pester.Client
}

// NewPeer dials the agent on the given backend. It satisfies
// agent.PeerFactory.
func NewPeer(backend agent.Backend) agent.PeerClient {
	return &Peer{backend: backend, client: makeRPCClient()}
}

func (p *Peer) MakeSnapshot(req *agent.SnapshotReq) (*agent.SnapshotResult, error) {
	url := fmt.Sprintf("http://%s:%d/api/snapshot", p.backend.Host, p.backend.BePort)
	var result agent.SnapshotResult
	if err := postJSON(p.client, url, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Peer) ReleaseSnapshot(snapshotPath string) error {
	url := fmt.Sprintf("http://%s:%d/api/release_snapshot", p.backend.Host, p.backend.BePort)
	req := &agent.ReleaseSnapshotReq{SnapshotPath: snapshotPath}
	var result agent.MasterResult
	if err := postJSON(p.client, url, req, &result); err != nil {
		return err
	}
	if result.Status.Code != agent.StatusOK {
		return errors.Errorf("release snapshot %s: %s", snapshotPath, result.Status.Code)
	}
	return nil
}
