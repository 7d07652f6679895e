package agent

import (
	"testing"

	"github.com/pkg/errors"
)

func TestCreateTabletBumpsReportVersion(t *testing.T) {
	a, engine, master := newTestAgent()
	before := a.ReportVersion()

	handleCreateTablet(a, &TaskRequest{
		Kind:         KindCreateTablet,
		Signature:    11,
		CreateTablet: &CreateTabletReq{TabletID: 101, SchemaHash: 3},
	})

	if got := a.ReportVersion(); got != before+1 {
		t.Fatalf("report version: got %d, want %d", got, before+1)
	}
	finishes := master.finished()
	if len(finishes) != 1 {
		t.Fatalf("finishes: %d", len(finishes))
	}
	finish := finishes[0]
	if finish.Status.Code != StatusOK || finish.Signature != 11 || finish.ReportVersion != before+1 {
		t.Fatalf("unexpected finish: %+v", finish)
	}
	if got := engine.recorded(); len(got) != 1 || got[0] != "create 101.3" {
		t.Fatalf("engine calls: %v", got)
	}
}

func TestCreateTabletFailureReportsRuntimeError(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.createErr = errors.New("disk full")
	before := a.ReportVersion()

	handleCreateTablet(a, &TaskRequest{
		Kind:         KindCreateTablet,
		Signature:    12,
		CreateTablet: &CreateTabletReq{TabletID: 102},
	})

	if got := a.ReportVersion(); got != before {
		t.Fatalf("failed create must not bump report version: %d != %d", got, before)
	}
	finish := master.finished()[0]
	if finish.Status.Code != StatusRuntimeError {
		t.Fatalf("status: %s", finish.Status.Code)
	}
}

func TestMissingPayloadIsAnalysisError(t *testing.T) {
	a, _, master := newTestAgent()
	handleCreateTablet(a, &TaskRequest{Kind: KindCreateTablet, Signature: 13})
	if got := master.finished()[0].Status.Code; got != StatusAnalysisError {
		t.Fatalf("status: %s", got)
	}
}

func TestCheckConsistencyWidensChecksum(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.checksum = 0xDEADBEEF

	handleCheckConsistency(a, &TaskRequest{
		Kind:      KindCheckConsistency,
		Signature: 20,
		CheckConsistency: &CheckConsistencyReq{
			TabletID: 1, SchemaHash: 2, Version: 30, VersionHash: 40,
		},
	})

	finish := master.finished()[0]
	if finish.TabletChecksum != int64(uint32(0xDEADBEEF)) {
		t.Fatalf("checksum: %d", finish.TabletChecksum)
	}
	if finish.RequestVersion != 30 || finish.RequestVersionHash != 40 {
		t.Fatalf("request version not echoed: %+v", finish)
	}
	if finish.Status.Code != StatusOK {
		t.Fatalf("status: %s", finish.Status.Code)
	}
}

func TestAlterDropsLeftoverOfFailedAlter(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.alterStatus = AlterFailed
	engine.tabletInfo = &TabletInfo{TabletID: 201, SchemaHash: 5, Version: 2}

	handleAlterTablet(a, &TaskRequest{
		Kind:      KindSchemaChange,
		Signature: 30,
		AlterTablet: &AlterTabletReq{
			BaseTabletID:   200,
			BaseSchemaHash: 4,
			NewTablet:      CreateTabletReq{TabletID: 201, SchemaHash: 5},
		},
	})

	calls := engine.recorded()
	if len(calls) != 2 || calls[0] != "drop 201.5" || calls[1] != "schema_change 201.5" {
		t.Fatalf("engine calls: %v", calls)
	}
	finish := master.finished()[0]
	if finish.Status.Code != StatusOK {
		t.Fatalf("status: %s", finish.Status.Code)
	}
	if len(finish.FinishTabletInfos) != 1 || finish.FinishTabletInfos[0].TabletID != 201 {
		t.Fatalf("tablet infos: %+v", finish.FinishTabletInfos)
	}
}

func TestAlterSkipsWhileRunning(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.alterStatus = AlterRunning
	engine.tabletInfo = &TabletInfo{TabletID: 201, SchemaHash: 5}

	handleAlterTablet(a, &TaskRequest{
		Kind:      KindRollup,
		Signature: 31,
		AlterTablet: &AlterTabletReq{
			NewTablet: CreateTabletReq{TabletID: 201, SchemaHash: 5},
		},
	})

	// A running prior alter means no rollup is attempted this round.
	for _, call := range engine.recorded() {
		if call == "rollup 201.5" {
			t.Fatalf("rollup ran despite a running prior alter: %v", engine.recorded())
		}
	}
	if got := master.finished()[0].Status.Code; got != StatusOK {
		t.Fatalf("status: %s", got)
	}
}

func TestPushLoadRetriesOnceOnInternalError(t *testing.T) {
	a, _, master := newTestAgent()
	pusher := &fakePusher{
		processErrs: []error{errors.New("transient"), nil},
		infos:       []TabletInfo{{TabletID: 7}},
	}
	a.env.NewPusher = func(req *PushReq) Pusher { return pusher }

	handlePush(a, pushReq(50, "u1", PriorityNormal))

	if pusher.processed != 2 {
		t.Fatalf("process calls: %d", pusher.processed)
	}
	finish := master.finished()[0]
	if finish.Status.Code != StatusOK || len(finish.FinishTabletInfos) != 1 {
		t.Fatalf("unexpected finish: %+v", finish)
	}
}

func TestPushRequestErrorIsNotRetried(t *testing.T) {
	a, _, master := newTestAgent()
	pusher := &fakePusher{
		processErrs: []error{TaskErrorf(ErrTaskRequest, "bad columns")},
	}
	a.env.NewPusher = func(req *PushReq) Pusher { return pusher }

	handlePush(a, pushReq(51, "u1", PriorityNormal))

	if pusher.processed != 1 {
		t.Fatalf("request error must not be retried, process calls: %d", pusher.processed)
	}
	if got := master.finished()[0].Status.Code; got != StatusAnalysisError {
		t.Fatalf("status: %s", got)
	}
}

func TestPushDeleteEchoesRequestVersion(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.deleteInfos = []TabletInfo{{TabletID: 9}}

	req := &TaskRequest{
		Kind:      KindPush,
		Signature: 52,
		Resource:  &ResourceInfo{User: "u1"},
		Push: &PushReq{
			TabletID: 9, PushType: PushDelete, Version: 17, VersionHash: 18,
		},
	}
	handlePush(a, req)

	finish := master.finished()[0]
	if finish.RequestVersion != 17 || finish.RequestVersionHash != 18 {
		t.Fatalf("delete must echo request version: %+v", finish)
	}
	if finish.Status.Code != StatusOK {
		t.Fatalf("status: %s", finish.Status.Code)
	}
	if got := engine.recorded(); len(got) != 1 || got[0] != "delete_data 9" {
		t.Fatalf("engine calls: %v", got)
	}
}

func TestMakeSnapshotReportsPath(t *testing.T) {
	a, engine, master := newTestAgent()
	engine.snapshotPath = "/data/snapshot/33"

	handleMakeSnapshot(a, &TaskRequest{
		Kind:      KindMakeSnapshot,
		Signature: 60,
		Snapshot:  &SnapshotReq{TabletID: 33, SchemaHash: 1},
	})

	finish := master.finished()[0]
	if finish.SnapshotPath != "/data/snapshot/33" || finish.Status.Code != StatusOK {
		t.Fatalf("unexpected finish: %+v", finish)
	}
}

func TestReportVersionNeverDecreases(t *testing.T) {
	a, engine, _ := newTestAgent()
	engine.tabletInfo = &TabletInfo{}
	last := a.ReportVersion()
	for i := 0; i < 5; i++ {
		handleCreateTablet(a, &TaskRequest{
			Kind: KindCreateTablet, Signature: int64(i), CreateTablet: &CreateTabletReq{},
		})
		if v := a.ReportVersion(); v < last {
			t.Fatalf("report version decreased: %d -> %d", last, v)
		} else {
			last = v
		}
	}
}
