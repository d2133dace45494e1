// Package export writes a session's retained frames to disk as JSONL
// for offline analysis.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/state"
)

// Record is one exported line: a frame annotated with the node it came
// from.
type Record struct {
	Node string `json:"node"`
	*frame.Frame
}

// Write streams every node's history to w, nodes ordered by id and
// frames in sequence order within each node. Nodes that never produced
// a frame contribute no lines.
func Write(w io.Writer, agg *state.Aggregated) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	nodes := agg.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })

	for _, node := range nodes {
		for _, f := range node.History() {
			if err := enc.Encode(Record{Node: node.ID(), Frame: f}); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// WriteFile exports to path, creating or truncating it. Failures are
// reported as export errors so the session can surface them at
// shutdown without changing its exit status.
func WriteFile(path string, agg *state.Aggregated) error {
	f, err := os.Create(path)
	if err != nil {
		return writeFailed(path, err)
	}

	if err := Write(f, agg); err != nil {
		f.Close()
		return writeFailed(path, err)
	}

	if err := f.Close(); err != nil {
		return writeFailed(path, err)
	}

	return nil
}

func writeFailed(path string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrExport,
		fmt.Sprintf("Couldn't write the export file at %s", path),
		"Check the path is writable. The monitoring data for this session is lost.")
}
