package domain

import "fmt"

// Generation parameter bounds fixed by the provider contract.
const (
	MinDuration = 5
	MaxDuration = 12
)

// AllowedRatios enumerates the aspect ratios the video model accepts.
var AllowedRatios = map[string]bool{
	"16:9": true,
	"9:16": true,
	"1:1":  true,
	"4:3":  true,
	"21:9": true,
}

// ValidateParams rejects out-of-range parameters before any remote call.
func ValidateParams(p TaskParams) error {
	if !AllowedRatios[p.Ratio] {
		return fmt.Errorf("%w: ratio %q", ErrInvalidParameter, p.Ratio)
	}
	if p.Duration < MinDuration || p.Duration > MaxDuration {
		return fmt.Errorf("%w: duration %d outside %d-%d", ErrInvalidParameter, p.Duration, MinDuration, MaxDuration)
	}
	return nil
}

// ValidateInput checks that the provided input matches the requested mode.
// Asset existence is checked separately by the caller against the store.
func ValidateInput(mode TaskMode, in TaskInput) error {
	switch mode {
	case ModeTextToVideo:
		if in.Prompt == "" {
			return fmt.Errorf("%w: text-to-video requires a prompt", ErrInvalidParameter)
		}
	case ModeImageToVideo:
		if in.ImageRef == "" {
			return fmt.Errorf("%w: image-to-video requires an uploaded image", ErrInvalidParameter)
		}
	case ModeEdit:
		if in.ImageRef == "" && in.VideoRef == "" {
			return fmt.Errorf("%w: edit requires an uploaded image or video", ErrInvalidParameter)
		}
		if in.Prompt == "" {
			return fmt.Errorf("%w: edit requires a prompt", ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidParameter, mode)
	}
	return nil
}
