package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/deployhub/internal/activity"
	"github.com/edvin/deployhub/internal/model"
	"github.com/edvin/deployhub/internal/orchestrator"
)

func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Operations{})
}

// ---------- ScheduledOperationWorkflow ----------

type ScheduledOperationWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ScheduledOperationWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ScheduledOperationWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *ScheduledOperationWorkflowTestSuite) TestSuccess() {
	s.env.OnActivity("RunScheduledOperation", mock.Anything, activity.RunOperationParams{
		InstanceID: "inst-1",
		Operation:  model.OpUpgrade,
		ToVersion:  "2.0.0",
		Actor:      "scheduler",
	}).Return(&activity.OperationOutcome{
		ExecutionID: "exec-1",
		State:       model.ExecutionSucceeded,
		Result:      model.ResultSuccess,
		Succeeded:   true,
	}, nil)

	s.env.ExecuteWorkflow(ScheduledOperationWorkflow, ScheduledOperationParams{
		InstanceID: "inst-1",
		Operation:  model.OpUpgrade,
		ToVersion:  "2.0.0",
		Actor:      "scheduler",
	})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ScheduledOperationWorkflowTestSuite) TestOperationFailed() {
	s.env.OnActivity("RunScheduledOperation", mock.Anything, mock.Anything).
		Return(&activity.OperationOutcome{
			ExecutionID: "exec-1",
			State:       model.ExecutionFailed,
			Result:      model.ResultFailure,
		}, nil)

	s.env.ExecuteWorkflow(ScheduledOperationWorkflow, ScheduledOperationParams{
		InstanceID: "inst-1",
		Operation:  model.OpSuspend,
	})

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Contains(err.Error(), "exec-1")
}

func (s *ScheduledOperationWorkflowTestSuite) TestActivityError() {
	s.env.OnActivity("RunScheduledOperation", mock.Anything, mock.Anything).
		Return(nil, errors.New("operation not allowed in current state"))

	s.env.ExecuteWorkflow(ScheduledOperationWorkflow, ScheduledOperationParams{
		InstanceID: "inst-1",
		Operation:  model.OpDestroy,
	})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestScheduledOperationWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ScheduledOperationWorkflowTestSuite))
}

// ---------- HealthSweepWorkflow ----------

type HealthSweepWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *HealthSweepWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *HealthSweepWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *HealthSweepWorkflowTestSuite) TestSuccess() {
	s.env.OnActivity("SweepHealth", mock.Anything).
		Return(&orchestrator.SweepResult{Checked: 4, Unhealthy: 1, Pruned: 12}, nil)

	s.env.ExecuteWorkflow(HealthSweepWorkflow)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *HealthSweepWorkflowTestSuite) TestSweepError() {
	s.env.OnActivity("SweepHealth", mock.Anything).
		Return(nil, errors.New("database unavailable"))

	s.env.ExecuteWorkflow(HealthSweepWorkflow)

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestHealthSweepWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(HealthSweepWorkflowTestSuite))
}
