// Package ressolver implements the Resolution Solver (C7): a worker
// pool over scene/resolution sampling clips, per-scene slope of score
// vs. resolution, and a decode-table walk to a target resolution.
package ressolver

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/config"
	"github.com/five82/drapto/internal/sceneencoder"
	"github.com/five82/drapto/internal/scorer"
	"github.com/five82/drapto/internal/worker"
)

// job is one (scene, resolution) clip to produce and score K times.
type job struct {
	scene      int
	resolution uint32
	clipPath   string
	clipStem   string
}

// Solve runs the Resolution Solver against parent, writing the decided
// output resolution back onto parent via SetOutputRes. For "no decision"
// outcomes (spec §4.10) it leaves parent.OutputRes at its existing value
// (orig_h_res by VPC construction) and returns a
// drerrors.NewNoDecisionError, which the orchestrator logs without
// aborting the pipeline.
func Solve(ctx context.Context, parent *config.VPC, enc *sceneencoder.Encoder, sc *scorer.Scorer, settings config.ResolutionSettings) error {
	if len(settings.TestingResolutions) < 2 {
		return drerrors.NewNoDecisionError("resolution solver: need at least two testing resolutions")
	}

	rMin := settings.TestingResolutions[0]
	rMax := settings.TestingResolutions[len(settings.TestingResolutions)-1]
	if rMin > rMax {
		rMin, rMax = rMax, rMin
	}

	scenes := settings.NumOfTests
	if scenes < 1 {
		return drerrors.NewNoDecisionError("resolution solver: num_of_tests must be >= 1")
	}

	repeats := settings.Repeats
	if repeats < 1 {
		repeats = 1
	}

	threads := settings.Threads
	if threads < 1 {
		threads = 1
	}

	timestep := parent.OrigDuration / float64(scenes+1)

	var jobs []job
	children := make(map[string]*config.VPC)

	for s := 1; s <= scenes; s++ {
		for _, r := range []uint32{rMin, rMax} {
			subdir := fmt.Sprintf("%d_%d_res", s, r)
			child, err := parent.Child(subdir)
			if err != nil {
				continue
			}

			start := int(float64(s) * timestep)
			duration := settings.SceneLength
			child.SetStart(start)
			child.SetDuration(duration)
			child.SetOutputRes(r)

			stem := fmt.Sprintf("%d_%d_cq%g", s, r, settings.CQValue)
			child.TargetPath = filepath.Join(child.Workspace, stem+".mkv")

			if _, err := enc.SampleClip(ctx, child, settings.CQValue, sceneencoder.FilterNeighbor); err != nil {
				continue
			}

			key := fmt.Sprintf("%d_%d", s, r)
			children[key] = child
			jobs = append(jobs, job{scene: s, resolution: r, clipPath: child.TargetPath, clipStem: stem})
		}
	}

	scores := make(map[string][]float64)
	var mu sync.Mutex

	sem := worker.NewSemaphore(threads)
	var wg sync.WaitGroup

	for _, j := range jobs {
		for k := 0; k < repeats; k++ {
			wg.Add(1)
			<-sem.Chan()
			go func(j job) {
				defer wg.Done()
				defer sem.Release()

				score, ok := sc.ScoreOnce(ctx, j.clipPath)
				if !ok {
					return
				}

				key := fmt.Sprintf("%d_%d", j.scene, j.resolution)
				mu.Lock()
				scores[key] = append(scores[key], score)
				mu.Unlock()
			}(j)
		}
	}
	wg.Wait()

	slopes, err := computeSlopes(scores, scenes, rMin, rMax)
	if err != nil {
		return err
	}
	if len(slopes) < 1 {
		return drerrors.NewNoDecisionError("resolution solver: no scenes produced both resolutions")
	}

	keep := int(math.Ceil(float64(len(slopes)) * keepFraction(settings.KeepBestSlopes)))
	if keep < 1 {
		keep = 1
	}
	if keep > len(slopes) {
		keep = len(slopes)
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(slopes)))
	kept := slopes[:keep]

	var sum float64
	for _, s := range kept {
		sum += s
	}
	avgSlope := sum / float64(len(kept))

	target := decodeResolution(avgSlope, parent.Profile.TestSettings.ResDecode, rMin, parent.OrigHRes)
	parent.SetOutputRes(target)

	return nil
}

func keepFraction(f float64) float64 {
	if f <= 0 {
		return 0.6
	}
	return f
}

// computeSlopes requires each scene to have a mean score at both rMin
// and rMax present (spec §4.5 step 3); scenes missing either are
// silently dropped from the reduction, not treated as a hard error.
func computeSlopes(scores map[string][]float64, scenes int, rMin, rMax uint32) ([]float64, error) {
	var slopes []float64

	for s := 1; s <= scenes; s++ {
		minScores, hasMin := scores[fmt.Sprintf("%d_%d", s, rMin)]
		maxScores, hasMax := scores[fmt.Sprintf("%d_%d", s, rMax)]
		if !hasMin || !hasMax || len(minScores) == 0 || len(maxScores) == 0 {
			continue
		}

		minMean := mean(minScores)
		maxMean := mean(maxScores)
		slope := (maxMean - minMean) / float64(rMax-rMin)
		slopes = append(slopes, slope)
	}

	if len(slopes) < 2 {
		return nil, drerrors.NewNoDecisionError("resolution solver: fewer than two scenes with both resolutions scored")
	}

	return slopes, nil
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// decodeResolution walks the decode table in declaration order, raising
// the answer to res whenever the slope meets or exceeds threshold and
// res exceeds the current answer, then clamps to origHRes (spec §4.5
// step 6, never upscale).
func decodeResolution(slope float64, table config.ResDecodeTable, floor, origHRes uint32) uint32 {
	answer := floor

	for _, entry := range table {
		if slope >= entry.Threshold && entry.Resolution > answer {
			answer = entry.Resolution
		}
	}

	if answer > origHRes {
		answer = origHRes
	}
	return answer
}
