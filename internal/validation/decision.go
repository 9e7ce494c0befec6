package validation

import (
	"fmt"
	"math"

	"github.com/five82/drapto/internal/config"
)

// DecideCheck runs the finished-decision invariants from spec §8
// (1-3, 5) against v. Invariant 4 (HDR round-trip) needs a produced
// output file and is checked separately by Roundtrip.
func DecideCheck(v *config.VPC, settings *config.TestSettings) *Result {
	var steps []Step

	steps = append(steps, checkOutputRes(v))
	steps = append(steps, checkOutputCQ(v, settings))
	steps = append(steps, checkCrop(v))
	steps = append(steps, checkStageDefaults(v, settings))

	return newResult(steps)
}

func checkOutputRes(v *config.VPC) Step {
	if v.OutputRes <= v.OrigHRes {
		return Step{Name: "output_res", Passed: true, Details: fmt.Sprintf("%d <= orig_h_res %d", v.OutputRes, v.OrigHRes)}
	}
	return Step{Name: "output_res", Passed: false, Details: fmt.Sprintf("%d exceeds orig_h_res %d", v.OutputRes, v.OrigHRes)}
}

// checkOutputCQ enforces invariant 2: the decided CQ is a multiple of
// 0.5 and lies within the configured CQ range, unless no solution was
// found and the CQ is still the profile default.
func checkOutputCQ(v *config.VPC, settings *config.TestSettings) Step {
	cq := v.OutputCQ
	isHalfStep := math.Mod(cq*2, 1) == 0

	if v.Profile != nil && cq == v.Profile.DefaultCQ() {
		return Step{Name: "output_cq", Passed: true, Details: fmt.Sprintf("%.1f is the profile default", cq)}
	}

	if !isHalfStep {
		return Step{Name: "output_cq", Passed: false, Details: fmt.Sprintf("%.2f is not a multiple of 0.5", cq)}
	}

	cqValues := settings.CQCalculation.CQValues
	if len(cqValues) == 0 {
		return Step{Name: "output_cq", Passed: true, Details: fmt.Sprintf("%.1f (no configured range to check)", cq)}
	}

	lo, hi := cqValues[0], cqValues[0]
	for _, c := range cqValues {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if cq < lo || cq > hi {
		return Step{Name: "output_cq", Passed: false, Details: fmt.Sprintf("%.1f outside [%.1f, %.1f]", cq, lo, hi)}
	}
	return Step{Name: "output_cq", Passed: true, Details: fmt.Sprintf("%.1f within [%.1f, %.1f]", cq, lo, hi)}
}

func checkCrop(v *config.VPC) Step {
	top, bottom := v.Crop[0], v.Crop[1]
	if top < 0 || bottom < 0 {
		return Step{Name: "crop", Passed: false, Details: fmt.Sprintf("negative crop %v", v.Crop)}
	}
	if v.OrigVRes > 0 && uint32(top+bottom) >= v.OrigVRes {
		return Step{Name: "crop", Passed: false, Details: fmt.Sprintf("crop %v covers the whole frame (orig_v_res %d)", v.Crop, v.OrigVRes)}
	}
	return Step{Name: "crop", Passed: true, Details: fmt.Sprintf("crop %v within orig_v_res %d", v.Crop, v.OrigVRes)}
}

// checkStageDefaults enforces invariant 5 for the stages that have a
// documented default: a disabled stage must leave the VPC at that
// default rather than some partially-applied value.
func checkStageDefaults(v *config.VPC, settings *config.TestSettings) Step {
	if !settings.CQCalculation.Enabled && v.Profile != nil && v.OutputCQ != v.Profile.DefaultCQ() {
		return Step{Name: "stage_defaults", Passed: false, Details: fmt.Sprintf("CQ calculation disabled but output_cq %.1f != default %.1f", v.OutputCQ, v.Profile.DefaultCQ())}
	}
	if !settings.BlackBarDetection.Enabled && v.Crop != [2]int{0, 0} {
		return Step{Name: "stage_defaults", Passed: false, Details: fmt.Sprintf("black-bar detection disabled but crop %v != [0 0]", v.Crop)}
	}
	return Step{Name: "stage_defaults", Passed: true, Details: "disabled stages left at their documented defaults"}
}
