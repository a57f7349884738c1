package services

import (
	"context"
	"fmt"
	"strings"

	"go.pilab.hu/codegrant/domain"
)

// UserClaimsService resolves OpenID Connect claims for a user, filtered by
// the scope granted at authorization time. The scope-to-claims vocabulary is
// fixed: profile, email, address, phone and privileges each unlock their
// standard claim group. Which scopes a user may grant is decided upstream;
// this service only maps granted scope onto stored profile data.
type UserClaimsService struct {
	users domain.UserRepository
}

// NewUserClaimsService creates a new UserClaimsService instance.
func NewUserClaimsService(users domain.UserRepository) *UserClaimsService {
	return &UserClaimsService{users: users}
}

// GetUserClaims returns the claim values the granted scope entitles the
// caller to, keyed by claim name. The sub claim is always present; unknown
// scope tokens are skipped; claims without stored values are omitted.
func (s *UserClaimsService) GetUserClaims(ctx context.Context, userID, scope string) (map[string]any, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching user for claims: %w", err)
	}

	claims := map[string]any{"sub": user.ID}
	for _, group := range strings.Fields(scope) {
		switch group {
		case "profile":
			addProfileClaims(claims, user)
		case "email":
			if user.Email != "" {
				claims["email"] = user.Email
				claims["email_verified"] = user.EmailVerified
			}
		case "address":
			if user.Address != nil {
				claims["address"] = user.Address
			}
		case "phone":
			if user.PhoneNumber != "" {
				claims["phone_number"] = user.PhoneNumber
				claims["phone_number_verified"] = user.PhoneNumberVerified
			}
		case "privileges":
			if len(user.Privileges) > 0 {
				claims["privileges"] = user.Privileges
			}
		}
	}
	return claims, nil
}

func addProfileClaims(claims map[string]any, user *domain.User) {
	set := func(name, value string) {
		if value != "" {
			claims[name] = value
		}
	}
	set("name", user.Name)
	set("family_name", user.FamilyName)
	set("given_name", user.GivenName)
	set("middle_name", user.MiddleName)
	set("nickname", user.Nickname)
	set("preferred_username", user.PreferredUsername)
	set("profile", user.Profile)
	set("picture", user.Picture)
	set("website", user.Website)
	set("gender", user.Gender)
	set("birthdate", user.Birthdate)
	set("zoneinfo", user.Zoneinfo)
	set("locale", user.Locale)
	if !user.UpdatedAt.IsZero() {
		claims["updated_at"] = user.UpdatedAt.Unix()
	}
}
