package session

import (
	"context"
	"fmt"
	"os"
	"slices"

	"obsaudio/fail"
	"obsaudio/future"
	"obsaudio/log"
)

// Setup returns a producer that validates c against what p reports as
// available, applies it and activates the session. The producer yields the
// applied category.
func Setup(p Platform, c Category) *future.Future[Category] {
	return future.New(fail.Activate, func(context.Context) (Category, error) {
		name, err := Check(p, c.Category)
		if err != nil {
			return Category{}, err
		}
		if !slices.Contains(p.AvailableModes(), c.Mode) {
			verbose := fmt.Sprintf("The mode %s is unavailable on this device.", c.Mode)
			log.Warn("[AudioSession] " + verbose)
			return Category{}, fail.New(fail.Activate, verbose)
		}
		if err := p.SetCategory(name, c.Mode, c.Options); err != nil {
			return Category{}, fmt.Errorf("set category %s: %w", c, err)
		}
		if err := p.SetActive(true); err != nil {
			return Category{}, fmt.Errorf("activate: %w", err)
		}
		return c, nil
	})
}

// SetupJSON decodes data before setting up; a decode failure short-circuits
// with a decode error and never touches p.
func SetupJSON(p Platform, data []byte) *future.Future[Category] {
	c, err := DecodeCategory(data)
	if err != nil {
		log.Warnf("[AudioCategory] cannot init: %v", err)
		return future.Failed[Category](err)
	}
	return Setup(p, c)
}

// SetupFile reads a JSON category from path and sets up with it.
func SetupFile(p Platform, path string) *future.Future[Category] {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("[AudioCategory] %v", err)
		return future.Failed[Category](fail.Newf(fail.Decode, "cannot create category from file %s: %v", path, err))
	}
	return SetupJSON(p, data)
}

// Check returns name if p lists it as available.
func Check(p Platform, name Name) (Name, error) {
	if !slices.Contains(p.AvailableCategories(), name) {
		verbose := fmt.Sprintf("The category %s is unavailable on this device.", name)
		log.Warn("[AudioSession] " + verbose)
		return "", fail.New(fail.Activate, verbose)
	}
	return name, nil
}

// SetCategoryIfChanged switches p to name with its current mode defaults,
// skipping the call when name is already the active category.
func SetCategoryIfChanged(p Platform, name Name) error {
	if name == p.Category() {
		return nil
	}
	checked, err := Check(p, name)
	if err != nil {
		return err
	}
	return p.SetCategory(checked, ModeDefault, 0)
}
