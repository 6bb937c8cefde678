package game

import (
	"errors"
	"fmt"

	"github.com/volanre/jollyred/internal/stats"
)

// DefaultProfileName is used when a spawn request names no profile
const DefaultProfileName = "player"

// ErrInvalidProfile is returned by Validate
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is a designer-authored character template: base stats plus tuning
type Profile struct {
	Name   string     `json:"name" yaml:"name"`
	Title  string     `json:"title" yaml:"title"`
	Base   stats.Base `json:"base" yaml:"base"`
	Tuning Tuning     `json:"tuning" yaml:"tuning"`
}

// DefaultProfile returns the stock player profile
func DefaultProfile() Profile {
	return Profile{
		Name:   DefaultProfileName,
		Title:  "Player",
		Base:   stats.DefaultBase(),
		Tuning: DefaultTuning(),
	}
}

// Validate rejects profiles that cannot produce a working character
func (p Profile) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.Base.MaxHealth <= 0 {
		errs = append(errs, fmt.Errorf("max_health must be positive, got %d", p.Base.MaxHealth))
	}
	if p.Base.Speed < 0 {
		errs = append(errs, fmt.Errorf("speed must not be negative, got %g", p.Base.Speed))
	}
	if p.Tuning.DashLength < 0 || p.Tuning.DashCooldown < 0 {
		errs = append(errs, errors.New("dash timings must not be negative"))
	}
	if p.Tuning.DeathDelay < 0 || p.Tuning.FlashDuration < 0 {
		errs = append(errs, errors.New("death delay and flash duration must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidProfile, p.Name, errors.Join(errs...))
	}
	return nil
}
