package models

import "time"

// UserSession is the locally persisted identity flash created after a
// successful credential decode. It is always written as a whole and never
// merged with a previous value.
//
// JSON example (stored under "userData:{sessionID}"):
//
//	{
//	  "id": "109876543210987654321",
//	  "name": "Jane Doe",
//	  "email": "jane@example.com",
//	  "picture": "https://lh3.googleusercontent.com/...",
//	  "loginTime": "2024-01-20T14:45:00Z"
//	}
type UserSession struct {
	SubjectID      string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PictureURL     string    `json:"picture"`
	LoginTimestamp time.Time `json:"loginTime"`
}

// Age returns how long ago the session was created relative to now.
func (s *UserSession) Age(now time.Time) time.Duration {
	return now.Sub(s.LoginTimestamp)
}
