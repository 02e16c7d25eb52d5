package main

import "fmt"

// partitionPolicy selects how files are grouped into batches.
type partitionPolicy int

const (
	// partitionFixed splits files into consecutive batches of batchSize.
	partitionFixed partitionPolicy = iota
	// partitionLockstep deals files round-robin over the pool and uploads
	// one file per client per batch.
	partitionLockstep
	// partitionStream deals files round-robin over the pool and gives each
	// client its whole group as one sequential stream.
	partitionStream
)

func (p partitionPolicy) String() string {
	switch p {
	case partitionFixed:
		return "fixed"
	case partitionLockstep:
		return "lockstep"
	case partitionStream:
		return "stream"
	}
	return fmt.Sprintf("partitionPolicy(%d)", int(p))
}

// lane is a sequence of files uploaded one after another on one client.
type lane struct {
	Slot  int
	Files []fileRecord
}

// batch is a group of lanes uploaded concurrently. A batch finishes before
// the next one starts.
type batch struct {
	Index int
	Lanes []lane
}

// Len returns the number of files in the batch.
func (b batch) Len() int {
	n := 0
	for _, l := range b.Lanes {
		n += len(l.Files)
	}
	return n
}

type batchPlan struct {
	Policy    partitionPolicy
	BatchSize int // fixed policy only
	PoolWidth int
}

func planBatches(files []fileRecord, plan batchPlan) []batch {
	if len(files) == 0 {
		return nil
	}

	width := max(plan.PoolWidth, 1)

	switch plan.Policy {
	case partitionLockstep:
		groups := roundRobin(files, width)
		var batches []batch
		for pos := 0; pos < len(groups[0]); pos++ {
			b := batch{Index: len(batches)}
			for slot, g := range groups {
				if pos < len(g) {
					b.Lanes = append(b.Lanes, lane{Slot: slot, Files: []fileRecord{g[pos]}})
				}
			}
			batches = append(batches, b)
		}
		return batches

	case partitionStream:
		groups := roundRobin(files, width)
		b := batch{}
		for slot, g := range groups {
			b.Lanes = append(b.Lanes, lane{Slot: slot, Files: g})
		}
		return []batch{b}

	default:
		size := max(plan.BatchSize, 1)
		batches := make([]batch, 0, (len(files)+size-1)/size)
		for start := 0; start < len(files); start += size {
			end := min(start+size, len(files))
			b := batch{Index: len(batches)}
			for i := start; i < end; i++ {
				b.Lanes = append(b.Lanes, lane{Slot: i % width, Files: []fileRecord{files[i]}})
			}
			batches = append(batches, b)
		}
		return batches
	}
}

// roundRobin deals files into min(len(files), n) groups; group i gets
// files i, i+n, i+2n and so on. Earlier groups are never shorter than later ones.
func roundRobin(files []fileRecord, n int) [][]fileRecord {
	n = min(n, len(files))
	groups := make([][]fileRecord, n)
	for i, f := range files {
		groups[i%n] = append(groups[i%n], f)
	}
	return groups
}
