// Package auth implements the phone number + SMS code login flow.
//
// A successful login is persisted as a JSON session file (see [Store]). The session is
// handed to the API service as an [oauth2.TokenSource] whose token carries the user id
// and VIP fields as extras, so requests can be signed without global state.
package auth
