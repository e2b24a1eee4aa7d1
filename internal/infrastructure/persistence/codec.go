package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// snapshot is the on-disk layout: {"xp": int, "badges": [{id,title,description?,icon?}]}.
type snapshot struct {
	XP     int64            `json:"xp"`
	Badges []progress.Badge `json:"badges"`
}

// EncodeState serializes the whole ledger state.
func EncodeState(state progress.State) ([]byte, error) {
	s := snapshot{XP: int64(state.XP), Badges: state.Badges}
	if s.Badges == nil {
		s.Badges = []progress.Badge{}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, shared.WrapError("persistence", "Encode", shared.ErrInvalidFormat, "failed to encode snapshot", err)
	}
	return data, nil
}

// DecodeState parses a stored snapshot.
//
// Partially present records are accepted: a missing or null "xp" reads as 0
// and missing or null "badges" reads as an empty list. Anything else that does
// not fit the layout (wrong types, negative XP, a badge without id or title,
// repeated badge ids) is rejected with ErrSnapshotMalformed. A literal null
// document is reported as ErrSnapshotNotFound.
func DecodeState(data []byte) (progress.State, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return progress.State{}, shared.ErrSnapshotNotFound
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return progress.State{}, malformed("not a JSON object", err)
	}

	state := progress.EmptyState()

	if raw, ok := fields["xp"]; ok && !isNull(raw) {
		xp, err := decodeXP(raw)
		if err != nil {
			return progress.State{}, err
		}
		state.XP = xp
	}

	if raw, ok := fields["badges"]; ok && !isNull(raw) {
		badges, err := decodeBadges(raw)
		if err != nil {
			return progress.State{}, err
		}
		state.Badges = badges
	}

	return state, nil
}

func decodeXP(raw json.RawMessage) (progress.XP, error) {
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return 0, malformed("xp is not a number", err)
	}

	xp, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return 0, malformed("xp is not an integer", err)
	}
	if xp < 0 {
		return 0, malformed(fmt.Sprintf("xp is negative: %d", xp), nil)
	}
	return progress.XP(xp), nil
}

func decodeBadges(raw json.RawMessage) ([]progress.Badge, error) {
	var badges []progress.Badge
	if err := json.Unmarshal(raw, &badges); err != nil {
		return nil, malformed("badges is not a list of badge objects", err)
	}

	seen := make(map[string]struct{}, len(badges))
	for i, b := range badges {
		if err := b.Validate(); err != nil {
			return nil, malformed(fmt.Sprintf("badge %d", i), err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, malformed(fmt.Sprintf("duplicate badge id %q", b.ID), nil)
		}
		seen[b.ID] = struct{}{}
	}

	if badges == nil {
		badges = []progress.Badge{}
	}
	return badges, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func malformed(msg string, err error) error {
	if err == nil {
		return shared.WrapError("persistence", "Decode", shared.ErrInvalidFormat, msg, shared.ErrSnapshotMalformed)
	}
	return shared.WrapError("persistence", "Decode", shared.ErrSnapshotMalformed, msg, err)
}
