package auth

// DefaultScopes are the Gmail OAuth scopes requested during sign-in.
//
// Full mail access is required because cleanup operations move messages to
// the trash; gmail.modify alone cannot do that for some label combinations.
var DefaultScopes = []string{
	"https://mail.google.com/",
}
