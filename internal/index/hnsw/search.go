package hnsw

import (
	"context"

	"github.com/alexvdb/alexvdb/internal/util"
)

// searchLevel performs optimized search at a specific level. It checks ctx
// at every candidate-pop boundary so a deadline or cancellation set on the
// originating Search call stops work promptly instead of running the full
// graph traversal to completion.
func (h *Index) searchLevel(ctx context.Context, query []float32, entryPoint *Node, ef int, level int) ([]*util.Candidate, error) {
	var result []*util.Candidate
	var searchErr error

	// The dynamic list (w, a min-heap popped closest-first) and the
	// working ef-best set (a max-heap used to evict the furthest) are
	// pulled from a pool instead of allocated fresh per call, mirroring
	// query_buffers.rs's thread-local scratch reuse.
	withQueryBuffers(func(qb *queryBuffers) {
		w := qb.candidates      // dynamic list: pop closest first
		working := qb.working   // best ef candidates found so far
		visited := qb.visited   // visited node ids for this pass

		entryID := h.findNodeID(entryPoint)
		if entryID == ^uint32(0) || int(entryID) >= len(h.nodes) {
			result = []*util.Candidate{}
			return
		}

		distance := h.computeDistanceOptimized(query, entryPoint)
		if distance < 0 {
			result = []*util.Candidate{}
			return
		}

		candidate := &util.Candidate{ID: entryID, Distance: distance}
		working.PushCandidate(candidate)
		w.PushCandidate(candidate)
		visited[entryID] = struct{}{}

		for w.Len() > 0 {
			if err := ctx.Err(); err != nil {
				searchErr = err
				return
			}

			current := w.PopCandidate()

			// Early termination condition - optimized for large datasets
			if working.Len() >= ef && current.Distance > working.Top().Distance {
				break
			}

			currentNode := h.nodes[current.ID]
			if level < len(currentNode.Links) {
				neighbors := currentNode.Links[level]
				for i, neighborID := range neighbors {
					if int(neighborID) >= len(h.nodes) {
						continue
					}
					if _, seen := visited[neighborID]; seen {
						continue
					}
					visited[neighborID] = struct{}{}

					neighborNode := h.nodes[neighborID]
					// Prefetch the next neighbor's vector while we
					// compute the distance for this one.
					if i+1 < len(neighbors) && int(neighbors[i+1]) < len(h.nodes) {
						prefetchVector(h.nodes[neighbors[i+1]].Vector)
					}

					neighborDistance := h.computeDistanceOptimized(query, neighborNode)
					if neighborDistance < 0 {
						continue
					}

					neighborCandidate := &util.Candidate{
						ID:       neighborID,
						Distance: neighborDistance,
					}

					if working.Len() < ef || neighborDistance < working.Top().Distance {
						working.PushCandidate(neighborCandidate)
						w.PushCandidate(neighborCandidate)

						if working.Len() > ef {
							working.PopCandidate()
						}
					}
				}
			}
		}

		result = make([]*util.Candidate, 0, working.Len())
		for working.Len() > 0 {
			result = append([]*util.Candidate{working.PopCandidate()}, result...)
		}
	})

	if searchErr != nil {
		return nil, searchErr
	}
	return result, nil
}

// computeDistanceOptimized provides optimized distance computation with error handling
func (h *Index) computeDistanceOptimized(query []float32, node *Node) float32 {
	if node.CompressedVector != nil && h.quantizer != nil {
		distance, err := h.quantizer.DistanceToQuery(node.CompressedVector, query)
		if err != nil {
			// Fall back to decompressed vector
			vec, decompErr := h.quantizer.Decompress(node.CompressedVector)
			if decompErr != nil {
				return -1 // Signal error
			}
			return h.distance(query, vec)
		}
		return distance
	} else if node.Vector != nil {
		return h.distance(query, node.Vector)
	}
	return -1 // Signal error - no vector available
}
