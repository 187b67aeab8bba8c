package engine

import (
	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Squash collapses the contiguous run of active migrations from firstID
// through lastID (inclusive) into a single migration with the same net
// effect. The result replaces the squashed run: its dependency is the first
// migration's dependency, it is initial iff the first was, and Replaces
// lists every subsumed ID. The original files are not touched; removing
// them is the operator's decision.
//
// The net effect is computed by replaying the chain up to the run's start,
// replaying the run on top, and diffing the two states. The squashed
// operation list is equivalent in final schema, not necessarily in
// intermediate steps.
func Squash(hist *history.History, firstID, lastID string) (*migration.Migration, error) {
	active := hist.Active()

	firstIdx, lastIdx := -1, -1
	for i, m := range active {
		switch m.ID {
		case firstID:
			firstIdx = i
		case lastID:
			lastIdx = i
		}
	}
	if firstID == lastID && firstIdx >= 0 {
		lastIdx = firstIdx
	}

	if firstIdx < 0 {
		return nil, sterr.Newf(sterr.ErrNonContiguous, "migration %q is not in the active chain", firstID).
			WithHelp("replaced migrations cannot be squashed again")
	}
	if lastIdx < 0 {
		return nil, sterr.Newf(sterr.ErrNonContiguous, "migration %q is not in the active chain", lastID).
			WithHelp("replaced migrations cannot be squashed again")
	}
	if firstIdx > lastIdx {
		return nil, sterr.Newf(sterr.ErrNonContiguous, "migration %q comes after %q in the chain", firstID, lastID).
			WithHelp("pass the earlier migration first")
	}

	run := active[firstIdx : lastIdx+1]

	base, err := Replay(active[:firstIdx])
	if err != nil {
		return nil, err
	}
	final, err := Replay(active[:lastIdx+1])
	if err != nil {
		return nil, err
	}

	ops, err := diffSchemas(base, final)
	if err != nil {
		return nil, err
	}

	first, last := run[0], run[len(run)-1]
	squashed := &migration.Migration{
		Hash:       last.Hash,
		Initial:    first.Initial,
		Dependency: first.Dependency,
		Operations: ops,
	}
	for _, m := range run {
		// Carry forward IDs the run itself already replaced so they stay
		// excluded from the active chain.
		squashed.Replaces = append(squashed.Replaces, m.Replaces...)
		squashed.Replaces = append(squashed.Replaces, m.ID)
	}

	return squashed, nil
}
