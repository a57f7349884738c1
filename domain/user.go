package domain

import "time"

// Address is the OpenID Connect structured address claim.
type Address struct {
	Formatted     string `bson:"formatted,omitempty" json:"formatted,omitempty"`
	StreetAddress string `bson:"street_address,omitempty" json:"street_address,omitempty"`
	Locality      string `bson:"locality,omitempty" json:"locality,omitempty"`
	Region        string `bson:"region,omitempty" json:"region,omitempty"`
	PostalCode    string `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
	Country       string `bson:"country,omitempty" json:"country,omitempty"`
}

// User represents a resource owner. Fields follow the OpenID Connect
// standard claims so the claims resolver can map scope groups directly onto
// the stored profile. Authentication of users happens outside this service;
// records here are read-only inputs to claims resolution.
type User struct {
	ID        string    `bson:"_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`

	// profile scope
	Name              string `bson:"name,omitempty"`
	GivenName         string `bson:"given_name,omitempty"`
	FamilyName        string `bson:"family_name,omitempty"`
	MiddleName        string `bson:"middle_name,omitempty"`
	Nickname          string `bson:"nickname,omitempty"`
	PreferredUsername string `bson:"preferred_username,omitempty"`
	Profile           string `bson:"profile,omitempty"`
	Picture           string `bson:"picture,omitempty"`
	Website           string `bson:"website,omitempty"`
	Gender            string `bson:"gender,omitempty"`
	Birthdate         string `bson:"birthdate,omitempty"` // ISO 8601 YYYY-MM-DD
	Zoneinfo          string `bson:"zoneinfo,omitempty"`
	Locale            string `bson:"locale,omitempty"`

	// email scope
	Email         string `bson:"email,omitempty"`
	EmailVerified bool   `bson:"email_verified,omitempty"`

	// address scope
	Address *Address `bson:"address,omitempty"`

	// phone scope
	PhoneNumber         string `bson:"phone_number,omitempty"`
	PhoneNumberVerified bool   `bson:"phone_number_verified,omitempty"`

	// privileges scope
	Privileges []string `bson:"privileges,omitempty"`
}
