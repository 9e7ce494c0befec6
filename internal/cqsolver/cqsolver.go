// Package cqsolver implements the CQ Solver (C8): for each scene,
// reference-relative VMAF at four CQ values, a quadratic fit of
// ΔVMAF(cq), and a positive-root solve for the profile's quality
// target.
package cqsolver

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"github.com/five82/drapto/internal/config"
	drerrors "github.com/five82/drapto/internal/errors"
	"github.com/five82/drapto/internal/sceneencoder"
	"github.com/five82/drapto/internal/scorer"
	"github.com/five82/drapto/internal/worker"
)

// sceneResult carries one scene's ΔVMAF series, keyed by CQ position
// (0..3 into the sorted CQ value list).
type sceneResult struct {
	scene int
	delta map[int]float64
}

// Solve runs the CQ Solver against parent, writing the decided CQ back
// via SetOutputCQ. len(cqValues) != 4 is the one hard configuration
// error named in spec §4.6; every other shortfall degrades to "no
// decision" and leaves the profile default in place.
func Solve(ctx context.Context, parent *config.VPC, enc *sceneencoder.Encoder, sc *scorer.Scorer, settings config.CQSettings, vmafThreads int, logDir string) error {
	if len(settings.CQValues) != 4 {
		return drerrors.NewNoDecisionError(
			fmt.Sprintf("cq solver: cq_values must have exactly 4 entries, got %d", len(settings.CQValues)))
	}

	cqValues := append([]float64(nil), settings.CQValues...)
	sort.Float64s(cqValues)

	scenes := settings.NumberOfScenes
	if scenes < 1 {
		return drerrors.NewNoDecisionError("cq solver: number_of_scenes must be >= 1")
	}

	threads := settings.Threads
	if threads < 1 {
		threads = 1
	}

	timestep := parent.OrigDuration / float64(scenes+1)

	// The middle anchor (position 1) is measured once, at scene 1, and
	// reused across every scene — an intentional cost optimization named
	// explicitly in spec §4.6 step 3 / §9 as an open question not to
	// silently "fix".
	middleDelta, middleOK := measureMiddleAnchor(ctx, parent, enc, sc, cqValues, timestep, settings, logDir)

	sem := worker.NewSemaphore(threads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []sceneResult

	for s := 1; s <= scenes; s++ {
		wg.Add(1)
		<-sem.Chan()
		go func(scene int) {
			defer wg.Done()
			defer sem.Release()

			delta, ok := measureScene(ctx, parent, enc, sc, cqValues, scene, timestep, settings, logDir)
			if !ok {
				return
			}
			if middleOK {
				delta[1] = middleDelta
			} else {
				delete(delta, 1)
			}

			mu.Lock()
			results = append(results, sceneResult{scene: scene, delta: delta})
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	target := parent.Profile.CQThreshold()
	var solutions []float64

	for _, r := range results {
		xs, ys := seriesFor(r.delta, cqValues)
		if len(xs) < 3 {
			continue
		}
		a, b, c, ok := fitQuadratic(xs, ys)
		if !ok {
			continue
		}
		root, ok := solvePositiveRoot(a, b, c, target)
		if !ok {
			continue
		}
		solutions = append(solutions, root)
	}

	if len(solutions) == 0 {
		return drerrors.NewNoDecisionError("cq solver: no scene produced a valid root")
	}

	sort.Float64s(solutions)
	keep := int(math.Ceil(float64(len(solutions)) * keepFraction(settings.KeepBestScenes)))
	if keep < 1 {
		keep = 1
	}
	if keep > len(solutions) {
		keep = len(solutions)
	}
	kept := solutions[:keep]

	var sum float64
	for _, v := range kept {
		sum += v
	}
	avg := sum / float64(len(kept))

	parent.SetOutputCQ(roundToHalf(avg))
	return nil
}

func keepFraction(f float64) float64 {
	if f <= 0 {
		return 0.6
	}
	return f
}

// seriesFor builds the (cq, ΔVMAF) point list from a scene's delta map,
// always seeding D[c0] = 0 per spec §4.6 step 4.
func seriesFor(delta map[int]float64, cqValues []float64) ([]float64, []float64) {
	xs := []float64{cqValues[0]}
	ys := []float64{0}

	for pos := 1; pos < len(cqValues); pos++ {
		d, ok := delta[pos]
		if !ok {
			continue
		}
		xs = append(xs, cqValues[pos])
		ys = append(ys, d)
	}

	return xs, ys
}

// measureScene encodes a reference and the three non-middle CQ test
// clips for one scene, returning ΔVMAF keyed by CQ position.
func measureScene(ctx context.Context, parent *config.VPC, enc *sceneencoder.Encoder, sc *scorer.Scorer, cqValues []float64, scene int, timestep float64, settings config.CQSettings, logDir string) (map[int]float64, bool) {
	start := int(float64(scene) * timestep)
	duration := settings.SceneLength

	refClip, err := encodeAt(ctx, parent, enc, fmt.Sprintf("%d_ref", scene), start, duration, settings.CQReference)
	if err != nil {
		return nil, false
	}

	delta := make(map[int]float64)
	var vmaf0 float64
	var haveVMAF0 bool

	for _, pos := range []int{0, 2, 3} {
		clip, err := encodeAt(ctx, parent, enc, fmt.Sprintf("%d_cq%g", scene, cqValues[pos]), start, duration, cqValues[pos])
		if err != nil {
			continue
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("%d_cq%g.xml", scene, cqValues[pos]))
		v, err := sc.VMAF(ctx, enc.FFmpegPath, refClip, clip, 1, logPath)
		if err != nil {
			continue
		}

		if pos == 0 {
			vmaf0 = v
			haveVMAF0 = true
			delta[0] = 0
		} else if haveVMAF0 {
			delta[pos] = vmaf0 - v
		}
	}

	if _, ok := delta[0]; !ok {
		return nil, false
	}

	return delta, true
}

// measureMiddleAnchor computes ΔVMAF at the middle CQ position using
// only scene 1, per spec §4.6 step 3.
func measureMiddleAnchor(ctx context.Context, parent *config.VPC, enc *sceneencoder.Encoder, sc *scorer.Scorer, cqValues []float64, timestep float64, settings config.CQSettings, logDir string) (float64, bool) {
	start := int(1 * timestep)
	duration := settings.SceneLength

	refClip, err := encodeAt(ctx, parent, enc, "1_ref_mid", start, duration, settings.CQReference)
	if err != nil {
		return 0, false
	}

	anchorClip, err := encodeAt(ctx, parent, enc, fmt.Sprintf("1_cq%g_mid_anchor", cqValues[0]), start, duration, cqValues[0])
	if err != nil {
		return 0, false
	}
	vmaf0, err := sc.VMAF(ctx, enc.FFmpegPath, refClip, anchorClip, 1, filepath.Join(logDir, "1_mid_anchor.xml"))
	if err != nil {
		return 0, false
	}

	midClip, err := encodeAt(ctx, parent, enc, fmt.Sprintf("1_cq%g_mid", cqValues[1]), start, duration, cqValues[1])
	if err != nil {
		return 0, false
	}
	midScore, err := sc.VMAF(ctx, enc.FFmpegPath, refClip, midClip, 1, filepath.Join(logDir, "1_mid.xml"))
	if err != nil {
		return 0, false
	}

	return vmaf0 - midScore, true
}

func encodeAt(ctx context.Context, parent *config.VPC, enc *sceneencoder.Encoder, name string, start, duration int, cq float64) (string, error) {
	child, err := parent.Child(name)
	if err != nil {
		return "", err
	}
	child.SetStart(start)
	child.SetDuration(duration)
	child.TargetPath = filepath.Join(child.Workspace, name+".mkv")

	result, err := enc.SampleClip(ctx, child, cq, sceneencoder.FilterLanczos)
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", fmt.Errorf("encode failed for %s", name)
	}
	return child.TargetPath, nil
}
