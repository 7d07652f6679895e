// Package downloader fetches tablet snapshot files over the peer HTTP
// download API. A URL naming a directory (trailing slash) yields a
// newline-separated listing; a URL naming a file streams its content, and a
// HEAD on the same URL reports its length.
package downloader

import (
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/palisadedb/palisade/common/stats"
)

// Downloader implements agent.FileDownloader over HTTP.
type Downloader struct {
	stat stats.StatsReceiver
}

func New(stat stats.StatsReceiver) *Downloader {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Downloader{stat: stat.Scope("downloader")}
}

// client builds a retrying HTTP client with a per-call overall timeout.
// Retries cover transient transport errors; the caller owns higher-level
// retry policy such as size re-verification.
func (d *Downloader) client(timeoutSeconds int64) *pester.Client {
	client := pester.NewExtendedClient(&http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	})
	client.Backoff = pester.LinearBackoff
	client.MaxRetries = 3
	client.LogHook = func(e pester.ErrEntry) {
		log.Warnf("retrying after failed attempt: %+v", e)
	}
	return client
}

// ListDir fetches the directory listing behind url and splits it into file
// names, dropping empty lines.
func (d *Downloader) ListDir(url string, timeoutSeconds int64) ([]string, error) {
	defer d.stat.Latency("list").Time()()
	resp, err := d.client(timeoutSeconds).Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("list %s: status %s", url, resp.Status)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read listing of %s", url)
	}
	var names []string
	for _, line := range strings.Split(string(body), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Length probes the remote file size.
func (d *Downloader) Length(url string, timeoutSeconds int64) (int64, error) {
	resp, err := d.client(timeoutSeconds).Head(url)
	if err != nil {
		return 0, errors.Wrapf(err, "head %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("head %s: status %s", url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, errors.Errorf("head %s: no content length", url)
	}
	return resp.ContentLength, nil
}

// Download streams the remote file into localPath, truncating any previous
// content, and returns the number of bytes written. The caller verifies the
// count against the probed length.
func (d *Downloader) Download(url, localPath string, timeoutSeconds int64) (int64, error) {
	defer d.stat.Latency("download").Time()()
	// No pester here: a partially written file must not be appended to by
	// a blind transport retry, so the caller re-drives whole attempts.
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, errors.Wrapf(err, "get %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("get %s: status %s", url, resp.Status)
	}

	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", localPath)
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, errors.Wrapf(err, "download %s", url)
	}
	d.stat.Counter("bytes").Inc(written)
	return written, nil
}
