package attach

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner maps "name arg arg..." to canned output.
type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
}

func (f *fakeRunner) output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	if err, ok := f.errors[key]; ok {
		return nil, err
	}
	out, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected command: %s", key)
	}
	return []byte(out), nil
}

func TestParseJobState(t *testing.T) {
	tests := []struct {
		code string
		want JobState
	}{
		{"R", StateRunning},
		{"PD", StatePending},
		{"CF", StatePending},
		{"S", StatePending},
		{"CG", StateTerminal},
		{"CD", StateTerminal},
		{"F", StateTerminal},
		{"CA", StateTerminal},
		{"TO", StateTerminal},
		{"OOM", StateTerminal},
		{"", StateTerminal},
		{"XX", StatePending},
	}

	for _, tt := range tests {
		t.Run("code "+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, parseJobState(tt.code+"\n"))
		})
	}
}

func TestJobNodesExpandsCompressedList(t *testing.T) {
	q := &SlurmQuerier{run: &fakeRunner{responses: map[string]string{
		"squeue --job 4242 --noheader --format=%N": "gpu[01-03]\n",
		"scontrol show hostnames gpu[01-03]":       "gpu01\ngpu02\ngpu03\n",
	}}}

	nodes, err := q.JobNodes(context.Background(), "4242")

	require.NoError(t, err)
	assert.Equal(t, []string{"gpu01", "gpu02", "gpu03"}, nodes)
}

func TestJobNodesEmptyAllocation(t *testing.T) {
	q := &SlurmQuerier{run: &fakeRunner{responses: map[string]string{
		"squeue --job 4242 --noheader --format=%N": "\n",
	}}}

	nodes, err := q.JobNodes(context.Background(), "4242")

	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestJobStateQueriesSqueue(t *testing.T) {
	q := &SlurmQuerier{run: &fakeRunner{responses: map[string]string{
		"squeue --job 4242 --noheader --format=%t": "PD\n",
	}}}

	st, err := q.JobState(context.Background(), "4242")

	require.NoError(t, err)
	assert.Equal(t, StatePending, st)
}

func TestParseMemoryMB(t *testing.T) {
	tests := []struct {
		name   string
		out    string
		wantMB int
		wantOK bool
	}{
		{
			name:   "per-node gigabytes",
			out:    "JobId=1 ReqMem=64Gn NumNodes=2 NumCPUs=16",
			wantMB: 65536,
			wantOK: true,
		},
		{
			name:   "per-node megabytes",
			out:    "JobId=1 MinMemoryNode=4096M",
			wantMB: 4096,
			wantOK: true,
		},
		{
			name:   "per-cpu scaled by cpus per node",
			out:    "JobId=1 ReqMem=2Gc NumNodes=2 NumCPUs=16",
			wantMB: 16384,
			wantOK: true,
		},
		{
			name:   "no memory field",
			out:    "JobId=1 NumNodes=2",
			wantOK: false,
		},
		{
			name:   "zero request",
			out:    "JobId=1 ReqMem=0n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, ok := parseMemoryMB(tt.out)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantMB, mb)
			}
		})
	}
}
