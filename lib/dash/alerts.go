package dash

import (
	"github.com/veridian-dash/veridian/lib/entity"
	"github.com/veridian-dash/veridian/lib/store"
)

const (
	AlertsKind = "alerts"
	AlertsID   = "all-alerts"
)

var alertsSchema = entity.Schema[[]AlertConfiguration]{
	Name:    AlertsKind,
	Initial: func() []AlertConfiguration { return []AlertConfiguration{} },
	ID:      func([]AlertConfiguration) string { return AlertsID },
}

// Alerts is the alert configuration list, stored as a whole under one fixed id.
type Alerts struct {
	ref *entity.Entity[[]AlertConfiguration]
}

func NewAlerts(s store.IStore) *Alerts {
	return &Alerts{ref: entity.NewKind(s, alertsSchema).Ref(AlertsID)}
}

// Configurations returns the stored list, an empty list if nothing was saved yet.
func (a *Alerts) Configurations() ([]AlertConfiguration, error) {
	configs, err := a.ref.StateOrInitial()
	if err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []AlertConfiguration{}
	}
	return configs, nil
}

// SaveConfigurations replaces the whole list.
func (a *Alerts) SaveConfigurations(configs []AlertConfiguration) error {
	if configs == nil {
		configs = []AlertConfiguration{}
	}
	return a.ref.Save(configs)
}
