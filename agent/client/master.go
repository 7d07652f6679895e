// Package client provides the HTTP/JSON implementations of the master and
// peer RPC contracts defined in the agent package.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/palisadedb/palisade/agent"
)

const rpcTimeout = 10 * time.Second

// makeRPCClient builds the retrying HTTP client used for master and peer
// calls.
func makeRPCClient() *pester.Client {
	client := pester.NewExtendedClient(&http.Client{Timeout: rpcTimeout})
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = 3
	client.Concurrency = 1
	client.LogHook = func(e pester.ErrEntry) {
		log.Warnf("retrying after failed rpc attempt: %+v", e)
	}
	return client
}

// Master talks to the cluster master over HTTP/JSON. The endpoint is
// resolved per call because heartbeats may repoint it at any time.
type Master struct {
	master func() agent.MasterInfo
	client *pester.Client
}

// NewMaster builds a master client; master supplies the current endpoint.
func NewMaster(master func() agent.MasterInfo) *Master {
	return &Master{master: master, client: makeRPCClient()}
}

func (m *Master) FinishTask(req *agent.FinishRequest) (*agent.MasterResult, error) {
	return m.call("finish_task", req)
}

func (m *Master) Report(req *agent.ReportRequest) (*agent.MasterResult, error) {
	return m.call("report", req)
}

func (m *Master) call(method string, req interface{}) (*agent.MasterResult, error) {
	info := m.master()
	if info.Port == 0 {
		return nil, errors.New("master endpoint unknown")
	}
	url := fmt.Sprintf("http://%s:%d/api/%s", info.Host, info.Port, method)
	var result agent.MasterResult
	if err := postJSON(m.client, url, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func postJSON(client *pester.Client, url string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, "marshal %s request", url)
	}
	httpResp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "post %s", url)
	}
	defer httpResp.Body.Close()
	data, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", url)
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.Errorf("post %s: status %s", url, httpResp.Status)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return errors.Wrapf(err, "parse %s response", url)
	}
	return nil
}

var _ agent.MasterClient = (*Master)(nil)
