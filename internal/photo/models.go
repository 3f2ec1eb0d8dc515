package photo

import "gorm.io/gorm"

// Photo is one catalog entry shown in the gallery list. Reference is the
// logical image reference (a URL that may carry an embedded size catalog);
// the acquisition layer resolves it to a concrete variant at fetch time.
type Photo struct {
	gorm.Model
	Title     string `json:"title"`
	Author    string `json:"author"`
	Reference string `json:"reference" gorm:"uniqueIndex"`
}

// User is a signed-in account. Sessions are minted after Google OAuth and
// only gate the administrative endpoints (cache clear, fetch cancel).
type User struct {
	gorm.Model
	Email string `json:"email" gorm:"uniqueIndex"`
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
}
