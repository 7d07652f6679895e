package agent_test

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/palisadedb/palisade/agent"
	"github.com/palisadedb/palisade/agent/mocks"
)

func reporterTestAgent(master agent.MasterClient) *agent.Agent {
	cfg := agent.DefaultConfig()
	cfg.SleepOneSecond = 0
	return agent.NewAgent(cfg, "testhost", agent.Env{Master: master})
}

func TestFinishTaskRetriesUntilMasterAccepts(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	masterMock := mocks.NewMockMasterClient(mockCtrl)
	gomock.InOrder(
		masterMock.EXPECT().FinishTask(gomock.Any()).Return(nil, errors.New("connection refused")).Times(2),
		masterMock.EXPECT().FinishTask(gomock.Any()).Return(&agent.MasterResult{}, nil),
	)

	a := reporterTestAgent(masterMock)
	a.SendFinish(&agent.FinishRequest{Kind: agent.KindCreateTablet, Signature: 5})
}

func TestFinishTaskGivesUpAfterThreeAttempts(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	masterMock := mocks.NewMockMasterClient(mockCtrl)
	masterMock.EXPECT().FinishTask(gomock.Any()).Return(nil, errors.New("connection refused")).Times(3)

	a := reporterTestAgent(masterMock)
	// Must return rather than retry forever; the master re-drives the task.
	a.SendFinish(&agent.FinishRequest{Kind: agent.KindCreateTablet, Signature: 6})
}
