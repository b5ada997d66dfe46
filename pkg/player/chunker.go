package player

import (
	"github.com/patchkit/core/pkg/midi"
)

// SubBlock is one chunk of a render block: a [start,end) frame range and
// the events that occur at its start offset, to be delivered to the
// engine immediately before rendering these frames (spec.md §4.1
// "Chunking policy").
type SubBlock struct {
	Start, End int32
	Events     []midi.Event
}

// Chunk splits a render block of numFrames into sub-blocks whose
// boundaries are the union of MIDI event offsets and the block end
// (spec.md §4.1, §9 "Chunker edge cases"):
//   - Zero-event blocks are a single sub-block.
//   - An event at offset 0 does not produce a zero-length leading
//     sub-block; its events are attached to the first real sub-block.
//   - Events at offset >= numFrames are out of range and dropped (the
//     caller's responsibility is to keep MIDI offsets within the block
//     it is rendering; a stale offset from a prior block must not wedge
//     the chunker).
//
// Testable Property 5: the returned sub-blocks cover [0,numFrames)
// exactly once, and every in-range event is attached to the sub-block
// whose Start equals the event's offset, i.e. delivered before any
// sample at or after that offset.
func Chunk(numFrames int32, events []midi.Event) []SubBlock {
	if numFrames <= 0 {
		return nil
	}

	// The queue owns filtering-to-range and ordering; the chunker only
	// turns that ordered slice into sub-block boundaries.
	queue := midi.NewEventQueue()
	queue.AddMultiple(events)
	inRange := queue.GetEventsInRange(0, numFrames)

	if len(inRange) == 0 {
		return []SubBlock{{Start: 0, End: numFrames}}
	}

	var blocks []SubBlock
	var boundaries []int32
	seen := make(map[int32]bool)
	for _, e := range inRange {
		// inRange is already sorted by offset, so boundaries come out
		// in order without a second sort.
		off := e.SampleOffset()
		if !seen[off] {
			seen[off] = true
			boundaries = append(boundaries, off)
		}
	}

	eventsByOffset := make(map[int32][]midi.Event, len(boundaries))
	for _, e := range inRange {
		eventsByOffset[e.SampleOffset()] = append(eventsByOffset[e.SampleOffset()], e)
	}

	cursor := int32(0)
	for i, b := range boundaries {
		if b > cursor {
			blocks = append(blocks, SubBlock{Start: cursor, End: b})
		}
		end := numFrames
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		blocks = append(blocks, SubBlock{Start: b, End: end, Events: eventsByOffset[b]})
		cursor = end
	}

	return blocks
}
