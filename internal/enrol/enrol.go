// Package enrol implements the player enrolment protocol (§4.8): short
// numeric access codes issued by the server and redeemed once by a
// player to bind itself to a device record.
package enrol

import (
	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/store"
)

// Service wraps device creation and registration.
type Service struct {
	db *store.Store
}

func New(db *store.Store) *Service {
	return &Service{db: db}
}

// CreateDevice allocates a device with a fresh, unique 6-digit access
// code (§4.8, §E5).
func (s *Service) CreateDevice(name string) (*model.Device, error) {
	return s.db.CreateDevice(name)
}

// Register redeems an access code: POST /player/register (§4.8, §6).
// Binding is idempotent — registering an already-bound device's code
// again still succeeds (§8 property 9).
func (s *Service) Register(accessCode string) (*model.Device, error) {
	d, err := s.db.DeviceByAccessCode(accessCode)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.NewNotFoundError("no device with access code %q", accessCode)
	}
	if !d.Active {
		return nil, model.NewForbiddenError("device %d is inactive", d.ID)
	}
	if !d.Bound {
		if err := s.db.BindDevice(d.ID); err != nil {
			return nil, err
		}
		d.Bound = true
	}
	return d, nil
}

// RotateAccessCode issues a new code and unbinds the device, forcing
// re-enrolment (§4.8).
func (s *Service) RotateAccessCode(deviceID int64) (string, error) {
	return s.db.RotateAccessCode(deviceID)
}
