package models

// Account is a monitored worker account. The monitor scans active accounts
// only; inactive ones keep their history but are never evaluated.
type Account struct {
	Id     string `json:"id"`
	UserId string `json:"userId"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
