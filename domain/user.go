package domain

// User is the body of the auth endpoints.
type User struct {
	ID string `json:"id"`
}

// UserResponse is the answer of the auth endpoints. The spellings are part of
// the wire format the client matches on.
type UserResponse string

const (
	UserRegistered   UserResponse = "Registered"
	UserAlreadyExist UserResponse = "AlreadyExist"
	UserDoesNotExist UserResponse = "DoesNotExist"
	UserLoginFailed  UserResponse = "LoginFailed"
	UserLoggedIn     UserResponse = "LogedIn"
	UserLoggedOut    UserResponse = "LogedOut"
)
