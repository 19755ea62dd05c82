// Package miner discovers heuristic process models from classified event
// logs of blockchain transactions.
//
// The mining core is a chain of pure functions:
//   - ExtractTransitions turns a position-ordered event stream into
//     transition records, adding "sta->X" at case starts and "X->end" at
//     case ends
//   - Aggregate and AggregateByBucket count transitions, optionally per
//     time bucket; TransitionCounts.Merge folds buckets together
//   - ComputeConfidence scores each observed transition against its reverse
//   - BuildGraph keeps the transitions above a relative-frequency cutoff and
//     a confidence cutoff
//   - ProfileTraceLengths builds per-bucket histograms of case lengths
//
// Example usage:
//
//	records, err := miner.ExtractTransitions(events)
//	if err != nil {
//	    return err
//	}
//	counts := miner.Aggregate(records)
//	conf, err := miner.ComputeConfidence(counts)
//	if err != nil {
//	    return err
//	}
//	graph, err := miner.BuildGraph(counts, conf, miner.GraphOptions{
//	    RelativeCutoff:     0.01,
//	    SignificanceCutoff: 0.5,
//	})
package miner
