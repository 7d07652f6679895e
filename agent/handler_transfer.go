package agent

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/palisadedb/palisade/common/temp"
)

// transferSeq disambiguates info files written by concurrent workers within
// the same wall-clock second.
var transferSeq uint64

func transferLabel(tabletID *int64) string {
	label := fmt.Sprintf("%d_%d", atomic.AddUint64(&transferSeq, 1), time.Now().Unix())
	if tabletID != nil {
		label = fmt.Sprintf("%s_%d", label, *tabletID)
	}
	return label
}

// writeSourceInfo writes the remote source properties as JSON into a
// uniquely named file under the agent tmp dir and returns its path.
func (a *Agent) writeSourceInfo(label string, properties map[string]string) (string, error) {
	dir, err := temp.NewDir(a.cfg.AgentTmpDir)
	if err != nil {
		return "", errors.Wrap(err, "create agent tmp dir")
	}
	data, err := json.Marshal(properties)
	if err != nil {
		return "", errors.Wrap(err, "marshal remote source properties")
	}
	path := dir.FixedFile(label)
	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		return "", errors.Wrapf(err, "write remote source info %s", path)
	}
	return path, nil
}

// runTransferTool invokes the external transfer script with an argv array.
// Its combined output becomes the error message on a non-zero exit.
func (a *Agent) runTransferTool(label, verb, localPath, remotePath, infoFile string, fileList bool) error {
	args := []string{a.cfg.TransFileToolPath, label, verb, localPath, remotePath, infoFile}
	if fileList {
		args = append(args, "file_list")
	}
	log.Infof("%s cmd: sh %s", verb, strings.Join(args, " "))
	out, err := exec.Command("sh", args...).CombinedOutput()
	if err != nil {
		return TaskErrorf(ErrInternal, "%s tool failed: %v: %s", verb, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func handleUpload(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.Upload == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "upload request missing payload"))
		a.finishTask(finish)
		return
	}
	upload := req.Upload
	log.Infof("get upload task. signature: %d", req.Signature)

	label := transferLabel(nil)
	infoFile, err := a.writeSourceInfo(label, upload.RemoteSourceProperties)
	if err != nil {
		log.Warnf("write remote source info failed. signature: %d, err: %v", req.Signature, err)
	} else {
		defer func() {
			if rerr := os.Remove(infoFile); rerr != nil && !os.IsNotExist(rerr) {
				log.Warnf("remove info file failed. path: %s, err: %v", infoFile, rerr)
			}
		}()
		localPath := upload.LocalFilePath
		if upload.TabletID != nil {
			localPath = fmt.Sprintf("%s/%d", localPath, *upload.TabletID)
		}
		err = a.runTransferTool(label, "upload", localPath, upload.RemoteFilePath, infoFile, true)
		if err != nil {
			log.Warnf("upload file failed. signature: %d, err: %v", req.Signature, err)
		}
	}
	setStatus(finish, err)
	a.finishTask(finish)
}

func handleRestore(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.Restore == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "restore request missing payload"))
		a.finishTask(finish)
		return
	}
	restore := req.Restore
	log.Infof("get restore task. signature: %d", req.Signature)

	label := transferLabel(&restore.TabletID)
	var shardRoot string
	infoFile, err := a.writeSourceInfo(label, restore.RemoteSourceProperties)
	if err != nil {
		log.Warnf("write remote source info failed. signature: %d, err: %v", req.Signature, err)
	} else {
		defer func() {
			if rerr := os.Remove(infoFile); rerr != nil && !os.IsNotExist(rerr) {
				log.Warnf("remove info file failed. path: %s, err: %v", infoFile, rerr)
			}
		}()
		shardRoot, err = a.env.Engine.ObtainShardPath(MediumHDD)
		if err != nil {
			log.Warnf("restore get local root path failed. signature: %d, err: %v", req.Signature, err)
			err = errors.Wrap(err, "restore get local root path")
		}
	}

	localPath := fmt.Sprintf("%s/%d/", shardRoot, restore.TabletID)
	if err == nil {
		err = a.runTransferTool(label, "download", localPath, restore.RemoteFilePath, infoFile, false)
		if err != nil {
			log.Warnf("download file failed. signature: %d, err: %v", req.Signature, err)
		}
	}

	if err == nil {
		err = renameRestoredFiles(localPath, restore.TabletID)
	}

	if err == nil {
		if lerr := a.env.Engine.LoadHeader(shardRoot, restore.TabletID, restore.SchemaHash); lerr != nil {
			log.Warnf("load header failed. shard_root: %s, tablet_id: %d, schema_hash: %d, err: %v",
				shardRoot, restore.TabletID, restore.SchemaHash, lerr)
			err = errors.Wrap(lerr, "load header")
		}
	}

	if err == nil {
		a.bumpReportVersion()
		if info, ierr := a.getTabletInfo(restore.TabletID, restore.SchemaHash, req.Signature); ierr != nil {
			log.Warnf("restore success, but get new tablet info failed. signature: %d", req.Signature)
		} else {
			finish.FinishTabletInfos = []TabletInfo{*info}
		}
	}
	setStatus(finish, err)
	a.finishTask(finish)
}

// renameRestoredFiles rewrites the tablet id prefix of every downloaded
// .hdr/.idx/.dat file: the base name up to the first '_' (first '.' for
// .hdr files) becomes the target tablet id. Other files and directories are
// left alone.
func renameRestoredFiles(localPath string, tabletID int64) error {
	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(localPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if len(name) <= 4 {
			return nil
		}
		suffix := name[len(name)-4:]
		if suffix != ".hdr" && suffix != ".idx" && suffix != ".dat" {
			return nil
		}
		separator := "_"
		if suffix == ".hdr" {
			separator = "."
		}
		sep := strings.Index(name, separator)
		if sep < 0 {
			return nil
		}
		newName := fmt.Sprintf("%d%s", tabletID, name[sep:])
		newPath := filepath.Join(filepath.Dir(path), newName)
		if newPath == path {
			return nil
		}
		log.Infof("change file name %s to %s", path, newPath)
		return os.Rename(path, newPath)
	})
}
