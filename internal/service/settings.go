package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/joeblew999/plat-atp/internal/store"
)

// Store keys for display settings.
const (
	BasemapKey    = "atp-basemap-name"
	ShowPhotosKey = "atp-show-photos"
	MiniPhotosKey = "atp-mini-photos"
)

// Basemaps lists the selectable basemaps. The first is the default.
var Basemaps = []string{"greyscale", "esriWorldTopo", "esriOceans", "stamenTerrain"}

// Settings are the persisted display preferences.
type Settings struct {
	Basemap    string `json:"basemap" enum:"greyscale,esriWorldTopo,esriOceans,stamenTerrain" doc:"Active basemap"`
	ShowPhotos bool   `json:"showPhotos" doc:"Show the species photo panel"`
	MiniPhotos bool   `json:"miniPhotos" doc:"Collapse the photo panel"`
}

// DefaultSettings returns the settings used when nothing was persisted.
func DefaultSettings() Settings {
	return Settings{Basemap: Basemaps[0], ShowPhotos: true, MiniPhotos: false}
}

// SettingsUpdate is a partial settings change.
type SettingsUpdate struct {
	Basemap    *string `json:"basemap,omitempty" enum:"greyscale,esriWorldTopo,esriOceans,stamenTerrain" doc:"New basemap"`
	ShowPhotos *bool   `json:"showPhotos,omitempty" doc:"Show the photo panel"`
	MiniPhotos *bool   `json:"miniPhotos,omitempty" doc:"Collapse the photo panel"`
}

// SettingsService holds and persists display settings.
type SettingsService struct {
	mu     sync.Mutex
	cur    Settings
	store  store.Store
	bus    *EventBus
	logger *slog.Logger
}

// NewSettingsService creates a service with default settings.
func NewSettingsService(st store.Store, bus *EventBus, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	return &SettingsService{cur: DefaultSettings(), store: st, bus: bus, logger: logger}
}

// Load reads persisted settings. Unknown or unparsable values keep their
// defaults.
func (s *SettingsService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := s.store.Get(ctx, BasemapKey); err != nil {
		return fmt.Errorf("reading basemap: %w", err)
	} else if ok && slices.Contains(Basemaps, v) {
		s.cur.Basemap = v
	}
	for key, dst := range map[string]*bool{ShowPhotosKey: &s.cur.ShowPhotos, MiniPhotosKey: &s.cur.MiniPhotos} {
		v, ok, err := s.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.logger.Warn("ignoring malformed setting", "key", key, "value", v)
			continue
		}
		*dst = b
	}
	return nil
}

// Get returns the current settings.
func (s *SettingsService) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update applies upd and persists the changed keys.
func (s *SettingsService) Update(ctx context.Context, upd SettingsUpdate) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	if upd.Basemap != nil {
		if !slices.Contains(Basemaps, *upd.Basemap) {
			return s.cur, fmt.Errorf("%w: unknown basemap %q", ErrInvalidUpdate, *upd.Basemap)
		}
		next.Basemap = *upd.Basemap
	}
	if upd.ShowPhotos != nil {
		next.ShowPhotos = *upd.ShowPhotos
	}
	if upd.MiniPhotos != nil {
		next.MiniPhotos = *upd.MiniPhotos
	}
	if next == s.cur {
		return s.cur, nil
	}

	writes := map[string]string{}
	if next.Basemap != s.cur.Basemap {
		writes[BasemapKey] = next.Basemap
	}
	if next.ShowPhotos != s.cur.ShowPhotos {
		writes[ShowPhotosKey] = strconv.FormatBool(next.ShowPhotos)
	}
	if next.MiniPhotos != s.cur.MiniPhotos {
		writes[MiniPhotosKey] = strconv.FormatBool(next.MiniPhotos)
	}
	for k, v := range writes {
		if err := s.store.Set(ctx, k, v); err != nil {
			s.logger.Error("persisting setting", "key", k, "error", err)
		}
	}

	s.cur = next
	s.bus.Publish(Event{Resource: "settings", Action: ActionSettings})
	return s.cur, nil
}
