package mongodb

const (
	CodesCollection  = "oauth_auth_codes" // Authorization code records
	TokensCollection = "oauth_tokens"     // Issued access tokens
	UsersCollection  = "oauth_users"      // Resource owner profiles
)
