package agent

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	downloadFileMaxRetry  = 3
	listRemoteFileTimeout = 15 // seconds
	getLengthTimeout      = 10 // seconds

	httpRequestPrefix     = "/api/_tablet/_download?"
	httpRequestTokenParam = "&token="
	httpRequestFileParam  = "&file="
)

func downloadURL(host Backend, token, file string) string {
	return fmt.Sprintf("http://%s:%d%s%s%s%s%s",
		host.Host, host.HTTPPort, httpRequestPrefix,
		httpRequestTokenParam, token, httpRequestFileParam, file)
}

func handleClone(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.Clone == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "clone request missing payload"))
		a.finishTask(finish)
		return
	}
	clone := req.Clone
	log.Infof("get clone task. signature: %d", req.Signature)

	var errMsgs []string
	var err error

	if tablet, gerr := a.env.Engine.GetTablet(clone.TabletID, clone.SchemaHash); gerr == nil && tablet != nil {
		log.Infof("clone tablet exist yet. tablet_id: %d, schema_hash: %d, signature: %d",
			clone.TabletID, clone.SchemaHash, req.Signature)
		errMsgs = append(errMsgs, "clone tablet exist yet.")
		err = TaskErrorf(ErrAlreadyExists, "clone tablet %d.%d already exists", clone.TabletID, clone.SchemaHash)
	}

	var localShard string
	if err == nil {
		localShard, err = a.env.Engine.ObtainShardPath(clone.StorageMedium)
		if err != nil {
			log.Warnf("clone get local root path failed. signature: %d, err: %v", req.Signature, err)
			errMsgs = append(errMsgs, "clone get local root path failed.")
		}

		var srcHost Backend
		var srcPath string
		if err == nil {
			srcHost, srcPath, err = a.cloneCopy(clone, req.Signature, localShard, &errMsgs)
		}

		if err == nil {
			log.Infof("clone copy done. src_host: %s, src_file_path: %s", srcHost.Host, srcPath)
			if lerr := a.env.Engine.LoadHeader(localShard, clone.TabletID, clone.SchemaHash); lerr != nil {
				log.Warnf("load header failed. local_shard: %s, schema_hash: %d, signature: %d, err: %v",
					localShard, clone.SchemaHash, req.Signature, lerr)
				errMsgs = append(errMsgs, "load header failed.")
				err = errors.Wrap(lerr, "load header")
			}
		}

		if err != nil {
			// The partial copy is useless; removal is best effort.
			localDataPath := fmt.Sprintf("%s/%d/%d", localShard, clone.TabletID, clone.SchemaHash)
			log.Infof("clone failed. want to delete local dir: %s, signature: %d",
				localDataPath, req.Signature)
			if rerr := os.RemoveAll(localDataPath); rerr != nil {
				log.Warnf("clone delete useless dir failed. dir: %s, err: %v", localDataPath, rerr)
			}
		}
	}

	if err == nil || CodeOf(err) == ErrAlreadyExists {
		info, ierr := a.getTabletInfo(clone.TabletID, clone.SchemaHash, req.Signature)
		if ierr != nil {
			errMsgs = append(errMsgs, "clone success, but get tablet info failed.")
			err = ierr
		} else if stale(info, clone.Committed) {
			// A cloned tablet older than the committed version is a stale
			// leftover waiting for drop; keeping it would roll data back.
			log.Infof("begin to drop the stale tablet. tablet_id: %d, schema_hash: %d, "+
				"version: %d, version_hash: %d, expected version: %d, version_hash: %d",
				clone.TabletID, clone.SchemaHash, info.Version, info.VersionHash,
				clone.Committed.Version, clone.Committed.Hash)
			drop := &DropTabletReq{TabletID: clone.TabletID, SchemaHash: clone.SchemaHash}
			if derr := a.env.Engine.DropTablet(drop); derr != nil {
				log.Warnf("drop stale cloned tablet failed. tablet_id: %d, err: %v",
					clone.TabletID, derr)
			}
			err = TaskErrorf(ErrInternal, "cloned tablet is stale. version: %d, expected: %d",
				info.Version, clone.Committed.Version)
		} else {
			log.Infof("clone get tablet info success. tablet_id: %d, schema_hash: %d, version: %d",
				clone.TabletID, clone.SchemaHash, info.Version)
			finish.FinishTabletInfos = []TabletInfo{*info}
		}
	}

	if err != nil && CodeOf(err) != ErrAlreadyExists {
		log.Warnf("clone failed. signature: %d, err: %v", req.Signature, err)
		errMsgs = append(errMsgs, "clone failed.")
	}
	setStatus(finish, err, errMsgs...)
	a.finishTask(finish)
}

func stale(info *TabletInfo, committed *TabletVersion) bool {
	if committed == nil {
		return false
	}
	return info.Version < committed.Version ||
		(info.Version == committed.Version && info.VersionHash != committed.Hash)
}

// cloneCopy pulls the tablet's snapshot files from the first source backend
// that serves a complete copy. Whatever happens after a snapshot is made on
// a source, that snapshot is released before moving on.
func (a *Agent) cloneCopy(clone *CloneReq, signature int64, localShard string, errMsgs *[]string) (Backend, string, error) {
	token := a.Master().Token

	var lastErr error
	for _, src := range clone.SrcBackends {
		if a.env.NewPeer == nil {
			return Backend{}, "", TaskErrorf(ErrInternal, "no peer client wired")
		}
		peer := a.env.NewPeer(src)

		log.Infof("pre make snapshot. backend_ip: %s", src.Host)
		result, err := peer.MakeSnapshot(&SnapshotReq{TabletID: clone.TabletID, SchemaHash: clone.SchemaHash})
		if err != nil || result.Status.Code != StatusOK {
			log.Warnf("make snapshot failed. tablet_id: %d, schema_hash: %d, backend_ip: %s, "+
				"signature: %d, err: %v", clone.TabletID, clone.SchemaHash, src.Host, signature, err)
			*errMsgs = append(*errMsgs, "make snapshot failed. backend_ip: "+src.Host)
			lastErr = TaskErrorf(ErrRPC, "make snapshot failed on %s", src.Host)
			continue
		}
		if result.SnapshotPath == "" {
			log.Warnf("clone make snapshot success, but get src file path failed. signature: %d", signature)
			lastErr = TaskErrorf(ErrRPC, "make snapshot returned no path on %s", src.Host)
			continue
		}
		snapshotPath := result.SnapshotPath
		if !strings.HasSuffix(snapshotPath, "/") {
			snapshotPath += "/"
		}
		log.Infof("make snapshot success. backend_ip: %s, src_file_path: %s, signature: %d",
			src.Host, snapshotPath, signature)

		err = a.copySnapshotFiles(clone, signature, src, token, snapshotPath, localShard)

		// Release regardless of the copy result; the source engine drops
		// unreleased snapshots eventually, but don't rely on it.
		if rerr := peer.ReleaseSnapshot(result.SnapshotPath); rerr != nil {
			log.Warnf("release snapshot failed. src_file_path: %s, signature: %d, err: %v",
				snapshotPath, signature, rerr)
		}

		if err == nil {
			return src, snapshotPath, nil
		}
		*errMsgs = append(*errMsgs, err.Error())
		lastErr = err
	}
	if lastErr == nil {
		lastErr = TaskErrorf(ErrInternal, "clone has no source backends")
	}
	return Backend{}, "", lastErr
}

func (a *Agent) copySnapshotFiles(clone *CloneReq, signature int64, src Backend, token, snapshotPath, localShard string) error {
	remoteDir := fmt.Sprintf("%s%d/%d/", snapshotPath, clone.TabletID, clone.SchemaHash)
	localDir := fmt.Sprintf("%s/%d/%d/", localShard, clone.TabletID, clone.SchemaHash)

	if err := os.RemoveAll(localDir); err != nil {
		return errors.Wrapf(err, "clear local dir %s", localDir)
	}
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return errors.Wrapf(err, "create local dir %s", localDir)
	}

	var names []string
	var err error
	for retry := 0; retry < downloadFileMaxRetry; retry++ {
		names, err = a.env.Downloader.ListDir(downloadURL(src, token, remoteDir), listRemoteFileTimeout)
		if err == nil {
			break
		}
		log.Warnf("clone get remote file list failed. backend_ip: %s, src_file_path: %s, "+
			"signature: %d, err: %v", src.Host, remoteDir, signature, err)
		time.Sleep(time.Duration(retry+1) * a.cfg.sleep())
	}
	if err != nil {
		return TaskErrorf(ErrFileDownload, "list remote files failed over max retry on %s", src.Host)
	}

	for _, name := range orderHeaderLast(names) {
		fileURL := downloadURL(src, token, remoteDir+name)
		localPath := localDir + name

		var size int64
		for retry := 0; retry < downloadFileMaxRetry; retry++ {
			size, err = a.env.Downloader.Length(fileURL, getLengthTimeout)
			if err == nil {
				break
			}
			log.Warnf("clone get file length failed. backend_ip: %s, file: %s, signature: %d, err: %v",
				src.Host, name, signature, err)
			time.Sleep(time.Duration(retry+1) * a.cfg.sleep())
		}
		if err != nil {
			return TaskErrorf(ErrFileDownload, "get length of %s failed over max retry on %s", name, src.Host)
		}

		timeout := size / int64(a.cfg.DownloadLowSpeedLimitKbps) / 1024
		if timeout < int64(a.cfg.DownloadLowSpeedTime) {
			timeout = int64(a.cfg.DownloadLowSpeedTime)
		}

		for retry := 0; retry < downloadFileMaxRetry; retry++ {
			err = a.downloadAndVerify(fileURL, localPath, size, timeout)
			if err == nil {
				break
			}
			log.Warnf("download file failed. backend_ip: %s, file: %s, signature: %d, err: %v",
				src.Host, name, signature, err)
			time.Sleep(time.Duration(retry+1) * a.cfg.sleep())
		}
		if err != nil {
			return TaskErrorf(ErrFileDownload, "download of %s failed over max retry on %s", name, src.Host)
		}
	}
	return nil
}

func (a *Agent) downloadAndVerify(url, localPath string, wantSize, timeoutSeconds int64) error {
	written, err := a.env.Downloader.Download(url, localPath, timeoutSeconds)
	if err != nil {
		return err
	}
	if written != wantSize {
		return TaskErrorf(ErrFileDownload, "download size mismatch for %s: remote %d, local %d",
			localPath, wantSize, written)
	}
	return os.Chmod(localPath, 0600)
}

// orderHeaderLast sorts .hdr files to the back of the download list. The
// header is the engine's completeness marker for a tablet; writing it last
// keeps an interrupted copy from being loadable.
func orderHeaderLast(names []string) []string {
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			ordered = append(ordered, name)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return !strings.HasSuffix(ordered[i], ".hdr") && strings.HasSuffix(ordered[j], ".hdr")
	})
	return ordered
}
