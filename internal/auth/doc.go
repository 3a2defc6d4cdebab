// Package auth manages DeviceHub user accounts and credentials.
//
// A user registers with a username and password, logs in to obtain a
// session (see the session package), and holds zero or more devices.
// The user's Devices list is one half of the lending invariant: a device
// ID appears in exactly the list of the user named as that device's
// holder. Only the lending package changes the list.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Authentication failures never reveal whether the username exists.
package auth
