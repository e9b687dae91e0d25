package reconnect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/model"
	"github.com/slok/doctrans/internal/reconnect"
	"github.com/slok/doctrans/internal/sse"
)

func TestPolicyDecide(t *testing.T) {
	tests := map[string]struct {
		state       model.TaskState
		kind        sse.CloseKind
		expDecision reconnect.Decision
	}{
		"A graceful close while streaming should detach.": {
			state:       model.TaskStateStreaming,
			kind:        sse.CloseGraceful,
			expDecision: reconnect.Decision{Action: reconnect.ActionDetach},
		},
		"An abnormal close while streaming should schedule a reconnect.": {
			state:       model.TaskStateStreaming,
			kind:        sse.CloseAbnormal,
			expDecision: reconnect.Decision{Action: reconnect.ActionSchedule, Delay: 3 * time.Second},
		},
		"A rejected stream while streaming should fail.": {
			state:       model.TaskStateStreaming,
			kind:        sse.CloseRejected,
			expDecision: reconnect.Decision{Action: reconnect.ActionFail},
		},
		"A local close should be ignored.": {
			state:       model.TaskStateStreaming,
			kind:        sse.CloseLocal,
			expDecision: reconnect.Decision{Action: reconnect.ActionIgnore},
		},
		"An abnormal close on a completed task should be ignored.": {
			state:       model.TaskStateCompleted,
			kind:        sse.CloseAbnormal,
			expDecision: reconnect.Decision{Action: reconnect.ActionIgnore},
		},
		"A rejected stream on a cancelled task should be ignored.": {
			state:       model.TaskStateCancelled,
			kind:        sse.CloseRejected,
			expDecision: reconnect.Decision{Action: reconnect.ActionIgnore},
		},
		"A close on an idle session should be ignored.": {
			state:       model.TaskStateIdle,
			kind:        sse.CloseAbnormal,
			expDecision: reconnect.Decision{Action: reconnect.ActionIgnore},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := reconnect.NewPolicy(reconnect.PolicyConfig{})
			require.NoError(t, err)

			assert.Equal(t, test.expDecision, p.Decide(test.state, test.kind))
		})
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := reconnect.NewPolicy(reconnect.PolicyConfig{Delay: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, p.Delay())

	_, err = reconnect.NewPolicy(reconnect.PolicyConfig{Delay: -time.Second})
	assert.Error(t, err)
}

func TestStillRelevant(t *testing.T) {
	tests := map[string]struct {
		scheduled string
		current   string
		state     model.TaskState
		exp       bool
	}{
		"Same task still streaming should be relevant.": {
			scheduled: "task_1", current: "task_1", state: model.TaskStateStreaming, exp: true,
		},
		"A replaced task should not be relevant.": {
			scheduled: "task_1", current: "task_2", state: model.TaskStateStreaming,
		},
		"A cancelled task should not be relevant.": {
			scheduled: "task_1", current: "task_1", state: model.TaskStateCancelled,
		},
		"A reset session should not be relevant.": {
			scheduled: "task_1", current: "", state: model.TaskStateIdle,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, reconnect.StillRelevant(test.scheduled, test.current, test.state))
		})
	}
}
