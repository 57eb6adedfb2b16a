package domain

// User is the minimal identity record the lending core needs. Profile and KYC
// data live outside this service.
type User struct {
	UserID       string `json:"userID"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	AuditFields
}
