package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_UnmarshalEventJSON(t *testing.T) {
	t.Parallel()

	allocate, err := json.Marshal(NewAllocateEvent(42, "alloc-1"))
	require.NoError(t, err)

	deallocate, err := json.Marshal(NewDeallocateEvent(42, "alloc-1"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     []byte
		wantType EventType
		wantErr  bool
	}{
		{name: "allocate", data: allocate, wantType: AllocateEventType},
		{name: "deallocate", data: deallocate, wantType: DeallocateEventType},
		{name: "unknown type", data: []byte(`{"EventType":"ExplodeEventType"}`), wantErr: true},
		{name: "malformed", data: []byte(`bang!`), wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			evt, err := UnmarshalEventJSON(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantType, evt.Type())
		})
	}
}

func Test_DaemonClient_dispatch(t *testing.T) {
	t.Parallel()

	d := NewDaemonClient("localhost:8086", newTestLogger())
	t.Cleanup(func() { _ = d.Close() })

	allocated := make(chan AllocateEvent, 1)
	deallocated := make(chan DeallocateEvent, 1)
	d.OnAllocate(func(e AllocateEvent) { allocated <- e })
	d.OnDeallocate(func(e DeallocateEvent) { deallocated <- e })

	data, err := json.Marshal(NewAllocateEvent(7, "alloc-7"))
	require.NoError(t, err)
	d.dispatch(data)

	select {
	case e := <-allocated:
		require.Equal(t, "alloc-7", e.AllocationID)
		require.Equal(t, int64(7), e.ServerID)
		require.NotEmpty(t, e.EventID)
	case <-time.After(time.Second):
		t.Fatal("allocate callback not called")
	}

	data, err = json.Marshal(NewDeallocateEvent(7, "alloc-7"))
	require.NoError(t, err)
	d.dispatch(data)
	require.Equal(t, "alloc-7", (<-deallocated).AllocationID)

	d.dispatch([]byte(`{"EventType":"ExplodeEventType"}`))
	require.Error(t, <-d.Errors())
}

func Test_serverChannel(t *testing.T) {
	t.Parallel()
	require.Equal(t, "server#1234", serverChannel(1234))
}
