package model

import "time"

// DeviceSubscription holds a Web Push subscription for one of an officer's
// devices. New DOB entries for the officer are pushed to every registered
// device.
type DeviceSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	CPOID     string    `gorm:"column:cpo_id;index;not null;size:36"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
