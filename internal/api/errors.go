package api

import "errors"

// Error is the uniform failure value returned by every client call.
// Network failures, structured backend errors, and unexpected statuses all
// surface as an *Error carrying a human-readable message, so callers never
// have to branch on transport details.
type Error struct {
	Message string
	// Status is the HTTP status code when the backend answered, 0 for
	// network-level failures.
	Status int
}

func (e *Error) Error() string { return e.Message }

// ErrMalformed reports a success status whose body was not the expected
// shape (e.g. the messages endpoint not returning a list). Callers decide
// whether that means "treat as empty" or "skip this tick".
var ErrMalformed = &Error{Message: "malformed response"}

// IsMalformed reports whether err is the malformed-response error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

const networkErrorMessage = "Network error. Please check your connection and try again."

// Fixed lookup tables translating known backend error strings to friendlier
// text. Unknown messages pass through unchanged.

var registerErrors = map[string]string{
	"Username already exists":        "Username already taken. Please choose a different username.",
	"Username and password required": "Please enter both username and password.",
	"Password too short":             "Password must be at least 8 characters long.",
}

var loginErrors = map[string]string{
	"Invalid password":               "Incorrect password. Please try again.",
	"User not found":                 "Username not found. Please check your username or register.",
	"Username and password required": "Please enter both username and password.",
}

var sendErrors = map[string]string{
	"sender and receiver required":           "Please select a recipient to send the message.",
	"User not found":                         "Recipient not found. Please check the username.",
	"content, imageUrl, or documentUrl required": "Please enter a message or attach a file.",
}

var deleteErrors = map[string]string{
	"Only the sender can delete messages for everyone":            "Only the sender can delete messages for everyone.",
	"You can only delete messages you sent or received":           "You can only delete messages you sent or received.",
	"You can only delete messages from groups you are a member of": "You can only delete messages from groups you are a member of.",
	"Message or user not found":                                   "Message not found or user not authenticated.",
}

func translate(table map[string]string, msg string) string {
	if friendly, ok := table[msg]; ok {
		return friendly
	}
	return msg
}
