package call

import "context"

// Track is an opaque handle to a single local or remote media track. The
// engine never inspects track content — only starts/stops it, per spec.md
// §4.5/invariant 6.
type Track interface {
	Stop()
}

// Stream is an opaque handle to a set of tracks, owned by the Call.
type Stream interface {
	Tracks() []Track
}

// MediaConstraints selects which kinds of local media to acquire. Resolves
// spec.md §9's open question: CallType.Video must request both audio and
// video, never the source's apparent {false,false} placeholder.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// constraintsFor returns the corrected constraint set for a call type.
func constraintsFor(t CallType) MediaConstraints {
	if t == TypeVideo {
		return MediaConstraints{Audio: true, Video: true}
	}
	return MediaConstraints{Audio: true, Video: false}
}

// MediaAcquirer is the external collaborator that acquires local media —
// device enumeration, camera/microphone acquisition UI is explicitly out of
// scope (spec.md §1); the engine only calls this function and gates/attaches
// whatever Stream it returns.
type MediaAcquirer func(ctx context.Context, constraints MediaConstraints) (Stream, error)
