package clouds

import (
	"context"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/verdantia/earthscout/internal/engine"
)

const (
	bandQualityAssurance = "QA_PIXEL"
	bandSceneClass       = "SCL"
	bandCloudProbability = "MSK_CLDPRB"
	cloudBit             = 1 << 3
	probabilityThreshold = 50
	maskProbePixelBudget = 1e8
	clearSkyPixelBudget  = 1e9
	maskProbeScaleMeters = 20
)

// Scene classification codes treated as cloud: cloud shadow, cloud medium
// probability, cloud high probability and thin cirrus.
var sentinelCloudCodes = []int{3, 8, 9, 10}

// SensorFamily is resolved once per image from the band set; all
// family-specific behavior dispatches on it instead of re-checking bands.
type SensorFamily int

const (
	FamilyUnknown SensorFamily = iota
	FamilyLandsat
	FamilySentinel
	FamilyProbability
)

func (f SensorFamily) String() string {
	switch f {
	case FamilyLandsat:
		return "landsat"
	case FamilySentinel:
		return "sentinel"
	case FamilyProbability:
		return "probability"
	}
	return "unknown"
}

// Scale is the native reduction resolution in meters for the family's
// cloud-indicator band.
func (f SensorFamily) Scale() int {
	switch f {
	case FamilyLandsat:
		return 30
	case FamilySentinel:
		return 20
	}
	return 10
}

// DetectFamily picks the family by band presence, in fixed priority
// order: quality-assurance bitmask, then scene classification, then cloud
// probability.
func DetectFamily(bands []string) SensorFamily {
	switch {
	case slices.Contains(bands, bandQualityAssurance):
		return FamilyLandsat
	case slices.Contains(bands, bandSceneClass):
		return FamilySentinel
	case slices.Contains(bands, bandCloudProbability):
		return FamilyProbability
	}
	return FamilyUnknown
}

// MaskClouds builds a copy of img with cloudy pixels invalidated, using
// whichever cloud-indicator band the image carries. Images without a
// recognized band come back unmodified. Band inspection failures
// propagate; everything past that point degrades instead of failing.
func MaskClouds(ctx context.Context, platform engine.Platform, img *engine.Image, debug bool) (*engine.Image, error) {
	bands, err := platform.BandNames(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect bands of %s: %w", img.AssetID(), err)
	}

	switch DetectFamily(bands) {
	case FamilyLandsat:
		clear := img.Select(bandQualityAssurance).BitwiseAnd(cloudBit).Eq(0)
		return img.UpdateMask(clear), nil

	case FamilySentinel:
		zeros := make([]int, len(sentinelCloudCodes))
		clear := img.Select(bandSceneClass).Remap(sentinelCloudCodes, zeros, 1).Eq(1)
		masked := img.UpdateMask(clear)

		// A corrupt or empty SCL layer masks every pixel. Probe the mask
		// over the footprint and fall back to the probability band when
		// nothing survives.
		total, ok := probeMask(ctx, platform, masked, debug)
		if ok && total == 0 && slices.Contains(bands, bandCloudProbability) {
			if debug {
				fmt.Printf("[DEBUG] SCL mask of %s is empty, falling back to %s\n", img.AssetID(), bandCloudProbability)
			}
			return img.UpdateMask(img.Select(bandCloudProbability).Lt(probabilityThreshold)), nil
		}
		return masked, nil

	case FamilyProbability:
		return img.UpdateMask(img.Select(bandCloudProbability).Lt(probabilityThreshold)), nil

	default:
		if debug {
			fmt.Printf("[DEBUG] no recognized cloud band on %s, returning image unmasked\n", img.AssetID())
		}
		return img, nil
	}
}

// probeMask sums the mask over the image footprint. ok is false when the
// probe itself failed, in which case the caller keeps the primary mask.
func probeMask(ctx context.Context, platform engine.Platform, masked *engine.Image, debug bool) (float64, bool) {
	info, err := platform.ImageInfo(ctx, masked.AssetID())
	if err != nil || info.Footprint == nil {
		if debug {
			fmt.Printf("[DEBUG] failed to resolve footprint of %s: %v\n", masked.AssetID(), err)
		}
		return 0, false
	}

	probe := masked.Mask().ReduceBands("sum")
	stats, err := platform.ReduceRegion(ctx, probe, engine.ReduceParams{
		Reducer:   "sum",
		Geometry:  info.Footprint,
		Scale:     maskProbeScaleMeters,
		MaxPixels: maskProbePixelBudget,
	})
	if err != nil {
		if debug {
			fmt.Printf("[DEBUG] failed to probe SCL mask of %s: %v\n", masked.AssetID(), err)
		}
		return 0, false
	}

	for _, value := range stats {
		return value, true
	}
	return 0, false
}

// ClearSkyPercentage scores how much of the region is cloud-free at the
// family's native resolution, in [0, 100]. It returns nil when the
// reduction finds no valid pixels or when anything fails along the way:
// one bad image must never abort a larger batch, and an absent score is
// not the same as zero clear pixels.
func ClearSkyPercentage(ctx context.Context, platform engine.Platform, img *engine.Image, region orb.Geometry, debug bool) *float64 {
	bands, err := platform.BandNames(ctx, img)
	if err != nil {
		if debug {
			fmt.Printf("[DEBUG] failed to inspect bands of %s: %v\n", img.AssetID(), err)
		}
		return nil
	}
	family := DetectFamily(bands)

	masked, err := MaskClouds(ctx, platform, img, debug)
	if err != nil {
		if debug {
			fmt.Printf("[DEBUG] failed to mask clouds of %s: %v\n", img.AssetID(), err)
		}
		return nil
	}

	clear := masked.Mask().ReduceBands("min").Rename("clear")
	stats, err := platform.ReduceRegion(ctx, clear, engine.ReduceParams{
		Reducer:   "mean",
		Geometry:  region,
		Scale:     family.Scale(),
		MaxPixels: clearSkyPixelBudget,
	})
	if err != nil {
		if debug {
			fmt.Printf("[DEBUG] failed to reduce clear mask of %s: %v\n", img.AssetID(), err)
		}
		return nil
	}

	mean, ok := stats["clear"]
	if !ok {
		if debug {
			fmt.Printf("[DEBUG] no valid pixels for %s over the region\n", img.AssetID())
		}
		return nil
	}

	percentage := mean * 100
	return &percentage
}
