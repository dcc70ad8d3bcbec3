// Package domain defines the persistence models for dataloggers, users, and
// trackpoints. These types are mapped with GORM and form the core data layer
// of the location broker.
package domain

import (
	"fmt"
	"time"
)

// StatusActive is the default Trackpoint status.
const StatusActive = 1

// Datalogger is a reporting client (phone, tracker) identified by a
// composite "{username}_{device}" string taken from the request headers.
//
// Fields:
//   - ID: auto-increment primary key, used by exports and the CLI.
//   - DevID: composite device identity; unique.
//   - Decoder: identifier of the decoder profile that created the device.
//   - ActivityAt: last time a request was received from the device.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Datalogger struct {
	ID         uint       `json:"id"          gorm:"primaryKey"`
	DevID      string     `json:"devid"       gorm:"type:varchar(255);not null;uniqueIndex:ux_datalogger_devid"`
	Decoder    string     `json:"decoder"     gorm:"type:varchar(64);not null;default:''"`
	ActivityAt *time.Time `json:"activity_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Datalogger.
func (Datalogger) TableName() string { return "dataloggers" }

// User is an account that may own trackpoints when a request carries valid
// Basic credentials.
type User struct {
	ID           uint      `json:"id"       gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex:ux_user_username"`
	PasswordHash string    `json:"-"        gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Trackpoint contains the data of a single GPS measurement. Field names follow
// the GPX <trkpt> element where one exists.
//
// A datalogger has at most one trackpoint per instant; the pair
// (datalogger_id, time) is enforced unique by the schema.
type Trackpoint struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	DataloggerID uint      `json:"datalogger_id" gorm:"not null;uniqueIndex:ux_trackpoint_datalogger_time,priority:1"`
	UserID       *uint     `json:"user_id,omitempty" gorm:"index"`
	Status       int       `json:"status"        gorm:"not null;default:1"`
	Time         time.Time `json:"time"          gorm:"not null;index;uniqueIndex:ux_trackpoint_datalogger_time,priority:2"`

	Lat float64 `json:"lat" gorm:"not null"` // degrees -90.0 .. 90.0
	Lon float64 `json:"lon" gorm:"not null"` // degrees -180.0 .. 180.0

	Speed  *float64 `json:"speed,omitempty"`  // m/s
	Course *float64 `json:"course,omitempty"` // degrees 0.0 .. 360.0
	Ele    *float64 `json:"ele,omitempty"`    // meters

	// Horizontal and vertical accuracy, as reported by the device.
	HAcc *float64 `json:"hacc,omitempty" gorm:"column:hacc"`
	VAcc *float64 `json:"vacc,omitempty" gorm:"column:vacc"`

	// Dilution of precision.
	HDOP *float64 `json:"hdop,omitempty" gorm:"column:hdop"`
	VDOP *float64 `json:"vdop,omitempty" gorm:"column:vdop"`
	PDOP *float64 `json:"pdop,omitempty" gorm:"column:pdop"`
	TDOP *float64 `json:"tdop,omitempty" gorm:"column:tdop"`

	// Satellites in view and used.
	Sat      *int `json:"sat,omitempty"`
	SatAvail *int `json:"satavail,omitempty" gorm:"column:satavail"`

	Batt *float64 `json:"batt,omitempty"`
	Conn *string  `json:"conn,omitempty" gorm:"type:varchar(64)"`
	TID  *string  `json:"tid,omitempty"  gorm:"column:tid;type:varchar(64)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Datalogger Datalogger `json:"-" gorm:"foreignKey:DataloggerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User       *User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Trackpoint.
func (Trackpoint) TableName() string { return "trackpoints" }

func (tp Trackpoint) String() string {
	return fmt.Sprintf("%s,%v,%v %d", tp.Time.Format(time.RFC3339Nano), tp.Lat, tp.Lon, tp.DataloggerID)
}
