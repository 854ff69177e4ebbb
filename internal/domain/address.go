package domain

import "time"

type Address struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"-"`
	Label     string    `bson:"label" json:"label"`
	Address   string    `bson:"address" json:"address"`
	Landmark  string    `bson:"landmark,omitempty" json:"landmark,omitempty"`
	City      string    `bson:"city" json:"city"`
	State     string    `bson:"state" json:"state"`
	Pincode   string    `bson:"pincode" json:"pincode"`
	Latitude  float64   `bson:"latitude" json:"latitude"`
	Longitude float64   `bson:"longitude" json:"longitude"`
	IsDefault bool      `bson:"is_default" json:"is_default"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
