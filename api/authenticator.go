package api

import (
	"net/http"
)

//User is the identity an HTTP request was authenticated as. The zero value is
//the anonymous user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

//IsAnonymous returns whether no identity was established
func (u User) IsAnonymous() bool {
	return len(u.ID) == 0
}

func (u User) String() string {
	if u.IsAnonymous() {
		return "anonymous"
	}
	return u.ID
}

//Authenticator describes the interface that a service authenticating an HTTP request should implement
type Authenticator interface {
	Authenticate(r *http.Request) (User, error)
}
