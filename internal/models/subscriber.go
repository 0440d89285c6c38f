package models

// Subscriber maps an email address to the GitHub account whose activity it receives.
// Subscribers are created by the registration flow; the digest pipeline only reads them.
type Subscriber struct {
	Email          string `json:"email" db:"email" validate:"required,email"`
	GitHubUsername string `json:"github_username" db:"github_username" validate:"required,max=39"`
}
