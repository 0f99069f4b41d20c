package service

import (
	"context"
	"fmt"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
)

// SettingsService reads and writes the key/value preferences
type SettingsService struct {
	store repository.Store
}

// NewSettingsService creates a new settings service
func NewSettingsService(store repository.Store) *SettingsService {
	return &SettingsService{store: store}
}

// SettingsPatch updates the provided preferences only
type SettingsPatch struct {
	Language         *string `json:"language" validate:"omitempty,oneof=fr ar"`
	Theme            *string `json:"theme" validate:"omitempty,oneof=light dark emerald"`
	SoundsEnabled    *bool   `json:"soundsEnabled"`
	RemindersEnabled *bool   `json:"remindersEnabled"`
}

// Get overlays the stored records on DefaultSettings.
// Values of the wrong type are ignored.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	out := domain.DefaultSettings()
	records, err := repository.List[domain.Setting](ctx, s.store, domain.CollectionSettings)
	if err != nil {
		return out, err
	}
	for _, r := range records {
		switch r.Key {
		case domain.SettingLanguage:
			if v, ok := r.Value.(string); ok {
				out.Language = v
			}
		case domain.SettingTheme:
			if v, ok := r.Value.(string); ok {
				out.Theme = v
			}
		case domain.SettingSoundsEnabled:
			if v, ok := r.Value.(bool); ok {
				out.SoundsEnabled = v
			}
		case domain.SettingRemindersEnabled:
			if v, ok := r.Value.(bool); ok {
				out.RemindersEnabled = v
			}
		case domain.SettingLastInventoryReminder:
			if v, ok := r.Value.(string); ok {
				out.LastInventoryReminder = v
			}
		}
	}
	return out, nil
}

// Update applies patch and returns the resulting settings
func (s *SettingsService) Update(ctx context.Context, patch *SettingsPatch) (domain.Settings, error) {
	if patch.Language != nil && *patch.Language != "fr" && *patch.Language != "ar" {
		return domain.Settings{}, errors.Validation(map[string]string{"language": "must be one of: fr ar"})
	}
	if patch.Theme != nil {
		switch *patch.Theme {
		case "light", "dark", "emerald":
		default:
			return domain.Settings{}, errors.Validation(map[string]string{"theme": "must be one of: light dark emerald"})
		}
	}

	writes := map[string]interface{}{}
	if patch.Language != nil {
		writes[domain.SettingLanguage] = *patch.Language
	}
	if patch.Theme != nil {
		writes[domain.SettingTheme] = *patch.Theme
	}
	if patch.SoundsEnabled != nil {
		writes[domain.SettingSoundsEnabled] = *patch.SoundsEnabled
	}
	if patch.RemindersEnabled != nil {
		writes[domain.SettingRemindersEnabled] = *patch.RemindersEnabled
	}

	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		for key, value := range writes {
			if err := tx.Put(ctx, domain.CollectionSettings, key, domain.Setting{Key: key, Value: value}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return s.Get(ctx)
}

// Set stores one raw setting
func (s *SettingsService) Set(ctx context.Context, key string, value interface{}) error {
	if key == "" {
		return errors.BadRequest("setting key is required")
	}
	return s.store.Put(ctx, domain.CollectionSettings, key, domain.Setting{Key: key, Value: value})
}

// ReminderKey is the lastInventoryReminder value: year and zero based month, e.g. "2025-0"
func ReminderKey(year int, monthIndex int) string {
	return fmt.Sprintf("%d-%d", year, monthIndex)
}
