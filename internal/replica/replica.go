// Package replica keeps one participant's copy of the game state in step with
// the peer's copy.
//
// Local actions run through the rules engine and the resulting change is
// published as a delta snapshot. Remote snapshots are merged by explicit
// field presence and accepted last-writer-wins by sequence number: anything
// at or below the local version is a duplicate or a reordered straggler and
// is dropped, so re-delivery is harmless.
package replica

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
)

var (
	// ErrNoState is returned before any snapshot has been installed
	ErrNoState = errors.New("no game state yet")

	// ErrMalformedSnapshot is returned when a remote snapshot is missing
	// fields or breaks the card-count invariant. Local state is kept.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrDesyncDetected is returned when a remote delta does not follow on
	// from the local version, or comes from the player not holding the
	// turn. There is no recovery: the match is over.
	ErrDesyncDetected = errors.New("desync detected")

	// ErrPublish wraps transport failures. The local transition has already
	// been committed when this is returned.
	ErrPublish = errors.New("publish failed")
)

// Publisher sends snapshots to the peer through the relay
type Publisher interface {
	PublishInit(snapshot protocol.Snapshot) error
	PublishUpdate(snapshot protocol.Snapshot) error
}

// Replica bridges one local rules engine instance to the relay. It is not
// safe for concurrent use; callers serialise access (see client.Session).
type Replica struct {
	local    game.Player
	pub      Publisher
	logger   *log.Logger
	state    game.State
	hasState bool
}

// New creates a replica for the local player
func New(local game.Player, pub Publisher, logger *log.Logger) *Replica {
	return &Replica{
		local:  local,
		pub:    pub,
		logger: logger.WithPrefix("replica").With("player", local.String()),
	}
}

// Local returns the seat this replica acts for
func (r *Replica) Local() game.Player {
	return r.local
}

// State returns the current state and whether one has been installed
func (r *Replica) State() (game.State, bool) {
	return r.state, r.hasState
}

// Seq returns the version of the local state
func (r *Replica) Seq() uint64 {
	return r.state.Version
}

// Deal deals a fresh match from seed, installs it and publishes it as the
// initial snapshot.
func (r *Replica) Deal(seed int64) (game.State, error) {
	st := game.Deal(seed)
	r.state = st
	r.hasState = true

	r.logger.Info("Dealt new match", "seed", seed, "top", st.StartingCard)
	if err := r.pub.PublishInit(protocol.FullSnapshot(st)); err != nil {
		return st, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return st, nil
}

// ApplyLocal runs a on behalf of the local player. On success the change is
// published as a delta tagged with the new version. Rejected actions leave
// state unchanged and return an error wrapping game.ErrIllegalAction.
func (r *Replica) ApplyLocal(a game.Action) (game.State, error) {
	if !r.hasState {
		return game.State{}, ErrNoState
	}
	if a.Type != game.TriggerStart {
		a.Player = r.local
	}

	prev := r.state
	next, err := game.Apply(prev, a)
	if err != nil {
		r.logger.Debug("Rejected local action", "action", a, "phase", prev.Phase, "error", err)
		return prev, err
	}
	r.state = next

	r.logger.Debug("Applied local action", "action", a, "phase", next.Phase, "seq", next.Version)
	if err := r.pub.PublishUpdate(protocol.Diff(prev, next)); err != nil {
		r.logger.Error("Failed to publish update", "seq", next.Version, "error", err)
		return next, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return next, nil
}

// ApplyInit installs the peer's initial snapshot
func (r *Replica) ApplyInit(snap protocol.Snapshot) error {
	if !snap.IsFull() {
		return fmt.Errorf("%w: initial snapshot is a delta", ErrMalformedSnapshot)
	}
	return r.ApplyRemote(snap)
}

// ApplyRemote merges a snapshot received from the peer. Stale and duplicate
// snapshots are ignored and return nil.
func (r *Replica) ApplyRemote(snap protocol.Snapshot) error {
	if r.hasState && snap.Seq <= r.state.Version {
		r.logger.Debug("Ignoring stale snapshot", "seq", snap.Seq, "local", r.state.Version)
		return nil
	}

	if !snap.IsFull() {
		if !r.hasState {
			return ErrNoState
		}
		if *snap.Base != r.state.Version {
			r.logger.Error("Snapshot does not follow local state",
				"base", *snap.Base, "seq", snap.Seq, "local", r.state.Version)
			return fmt.Errorf("%w: delta based on %d, local is %d", ErrDesyncDetected, *snap.Base, r.state.Version)
		}
		if r.state.Turn != r.local.Other() {
			r.logger.Error("Peer changed state out of turn", "turn", r.state.Turn, "seq", snap.Seq)
			return fmt.Errorf("%w: peer acted during %s's turn", ErrDesyncDetected, r.state.Turn)
		}
	}

	merged, err := snap.MergeInto(r.state)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if err := merged.Validate(); err != nil {
		r.logger.Warn("Rejecting malformed snapshot", "seq", snap.Seq, "error", err)
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	r.state = merged
	r.hasState = true
	r.logger.Debug("Applied remote snapshot", "seq", snap.Seq, "phase", merged.Phase, "full", snap.IsFull())
	return nil
}
